package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Stats describes the persistent store.
type Stats struct {
	Path      string
	Entries   int
	TotalSize int64 // sum of cached file sizes
	FileSize  int64 // size of the database file
	Algorithm string
}

// ScanRecord is one row of scan history.
type ScanRecord struct {
	ID              int64
	Roots           []string
	ScannedAt       time.Time
	Duration        time.Duration
	TotalFiles      int
	DuplicateGroups int
	WastedSpace     int64
	PotentialGroups int
	Errors          int
}

// errVolatile is returned by maintenance calls on a cache that lost its store.
var errVolatile = errors.New("hash cache is running in memory")

// Stats returns entry counts and the on-disk size.
func (c *SQLiteCache) Stats() (Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil || c.volatile != nil {
		return Stats{}, errVolatile
	}

	st := Stats{Path: c.path}
	err := c.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM file_hashes`).Scan(&st.Entries, &st.TotalSize)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count entries: %w", err)
	}
	c.db.QueryRow(`SELECT value FROM cache_meta WHERE key = 'algorithm'`).Scan(&st.Algorithm)
	if info, err := os.Stat(c.path); err == nil {
		st.FileSize = info.Size()
	}
	return st, nil
}

// Clear removes every cached digest. Scan history is kept.
func (c *SQLiteCache) Clear() (int64, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil || c.volatile != nil {
		return 0, errVolatile
	}

	res, err := c.db.Exec(`DELETE FROM file_hashes`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}
	return res.RowsAffected()
}

// Prune deletes entries whose file is gone or whose size or mtime changed.
func (c *SQLiteCache) Prune(ctx context.Context) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil || c.volatile != nil {
		return 0, errVolatile
	}

	rows, err := c.db.QueryContext(ctx, `SELECT path, size, mtime FROM file_hashes`)
	if err != nil {
		return 0, fmt.Errorf("failed to query entries: %w", err)
	}

	var stale []string
	for rows.Next() {
		var path string
		var size, mtime int64
		if err := rows.Scan(&path, &size, &mtime); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan row: %w", err)
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() || info.Size() != size || info.ModTime().UnixNano() != mtime {
			stale = append(stale, path)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to read entries: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM file_hashes WHERE path = ?`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, path := range stale {
		if _, err := stmt.ExecContext(ctx, path); err != nil {
			return 0, fmt.Errorf("failed to delete %s: %w", path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	return len(stale), nil
}

// RecordScan records a scan in history
func (c *SQLiteCache) RecordScan(r ScanRecord) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil || c.volatile != nil {
		return errVolatile
	}

	if r.ScannedAt.IsZero() {
		r.ScannedAt = time.Now()
	}
	_, err := c.db.Exec(`
		INSERT INTO scan_history (roots, scanned_at, duration_ms, total_files, duplicate_groups, wasted_space, potential_groups, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, strings.Join(r.Roots, "\n"), r.ScannedAt.Unix(), r.Duration.Milliseconds(),
		r.TotalFiles, r.DuplicateGroups, r.WastedSpace, r.PotentialGroups, r.Errors)
	if err != nil {
		return fmt.Errorf("failed to record scan: %w", err)
	}
	return nil
}

// History returns the most recent scans, newest first. limit <= 0 returns all.
func (c *SQLiteCache) History(limit int) ([]ScanRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil || c.volatile != nil {
		return nil, errVolatile
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := c.db.Query(`
		SELECT id, roots, scanned_at, duration_ms, total_files, duplicate_groups, wasted_space, potential_groups, errors
		FROM scan_history
		ORDER BY scanned_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []ScanRecord
	for rows.Next() {
		var r ScanRecord
		var roots string
		var scannedAt, durationMs int64
		err := rows.Scan(&r.ID, &roots, &scannedAt, &durationMs,
			&r.TotalFiles, &r.DuplicateGroups, &r.WastedSpace, &r.PotentialGroups, &r.Errors)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Roots = strings.Split(roots, "\n")
		r.ScannedAt = time.Unix(scannedAt, 0)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, r)
	}
	return records, rows.Err()
}
