package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"

	"dupfinder/internal/logging"
)

// Current schema version
const schemaVersion = 3

// migrations are applied in order on open. Each must be idempotent.
var migrations = []struct {
	version     int
	description string
	up          string
}{
	{
		version:     1,
		description: "Initial schema",
		up:          "", // Handled by base schema creation
	},
	{
		version:     2,
		description: "Add scan history",
		up: `
			CREATE TABLE IF NOT EXISTS scan_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				roots TEXT NOT NULL,
				scanned_at INTEGER NOT NULL,
				duration_ms INTEGER NOT NULL,
				total_files INTEGER NOT NULL,
				duplicate_groups INTEGER NOT NULL,
				wasted_space INTEGER NOT NULL,
				potential_groups INTEGER NOT NULL,
				errors INTEGER NOT NULL
			);
		`,
	},
	{
		version:     3,
		description: "Track digest algorithm",
		up: `
			CREATE TABLE IF NOT EXISTS cache_meta (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL
			);
		`,
	},
}

// SQLiteCache is a HashCache stored in a single SQLite file. Reads run
// concurrently; writes are serialized. After a write failure that cannot be
// repaired it either fails hard (strict) or continues in memory.
type SQLiteCache struct {
	path      string
	strict    bool
	algorithm string
	logger    *log.Logger

	// mu guards db and volatile. Readers hold it shared.
	mu       sync.RWMutex
	db       *sql.DB
	volatile *MemoryCache

	writeMu   sync.Mutex
	recovered error
}

// Option configures Open.
type Option func(*SQLiteCache)

// WithStrict makes an unrecoverable store fatal instead of falling back to memory.
func WithStrict(strict bool) Option {
	return func(c *SQLiteCache) {
		c.strict = strict
	}
}

// WithAlgorithm records the digest algorithm. Entries written under a
// different algorithm are discarded on open.
func WithAlgorithm(name string) Option {
	return func(c *SQLiteCache) {
		c.algorithm = name
	}
}

// WithLogger sets the logger used for recovery warnings.
func WithLogger(l *log.Logger) Option {
	return func(c *SQLiteCache) {
		c.logger = l
	}
}

// Open opens the cache at path, recovering from a corrupt store by archiving
// it and starting empty. If no store can be created the cache runs in memory
// and Recovered reports ErrCacheUnavailable, or Open fails with ErrCacheFatal
// when strict. An empty path yields a NopCache.
func Open(path string, opts ...Option) (HashCache, error) {
	c := &SQLiteCache{path: path}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.Component(c.logger, "cache")

	if path == "" {
		c.logger.Warn("no hash cache configured, digests will not persist")
		return NopCache{}, nil
	}

	err := c.open()
	if err == nil {
		return c, nil
	}

	if _, statErr := os.Stat(path); statErr == nil {
		archived, archErr := archive(path)
		if archErr == nil {
			c.logger.Warn("hash cache corrupt, regenerating", "path", path, "archived", archived, "err", err)
			if err = c.open(); err == nil {
				c.recovered = fmt.Errorf("%w: %s archived to %s", ErrCacheCorrupt, path, archived)
				return c, nil
			}
		} else {
			err = errors.Join(err, archErr)
		}
	}

	if c.strict {
		return nil, fmt.Errorf("%w: %s: %v", ErrCacheFatal, path, err)
	}
	c.logger.Warn("hash cache unavailable, using in-memory cache", "path", path, "err", err)
	c.volatile = NewMemoryCache()
	c.recovered = fmt.Errorf("%w: %s: %v", ErrCacheUnavailable, path, err)
	return c, nil
}

// archive moves a bad store aside as <path>.corrupt-<timestamp>.
func archive(path string) (string, error) {
	dst := fmt.Sprintf("%s.corrupt-%s", path, time.Now().Format("20060102-150405"))
	if err := os.Rename(path, dst); err != nil {
		return "", fmt.Errorf("failed to archive corrupt cache: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm", "-journal"} {
		os.Remove(path + suffix)
	}
	return dst, nil
}

// open connects to the store, verifies it and creates the schema.
func (c *SQLiteCache) open() error {
	dir := filepath.Dir(c.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", c.path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	var check string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&check); err != nil {
		db.Close()
		return fmt.Errorf("failed to check database: %w", err)
	}
	if check != "ok" {
		db.Close()
		return fmt.Errorf("integrity check failed: %s", check)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return err
	}
	if err := c.checkAlgorithm(db); err != nil {
		db.Close()
		return err
	}

	c.mu.Lock()
	c.db = db
	c.volatile = nil
	c.mu.Unlock()
	return nil
}

// initSchema creates the schema and runs pending migrations.
func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS file_hashes (
			path TEXT UNIQUE NOT NULL,
			size INTEGER NOT NULL,
			mtime INTEGER NOT NULL,
			hash TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if m.up != "" {
			if _, err := db.Exec(m.up); err != nil {
				return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.description, err)
			}
		}
		if _, err := db.Exec(`INSERT OR REPLACE INTO schema_version (version) VALUES (?)`, m.version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
	}
	return nil
}

// checkAlgorithm drops entries computed with another digest algorithm.
func (c *SQLiteCache) checkAlgorithm(db *sql.DB) error {
	if c.algorithm == "" {
		return nil
	}

	var stored string
	err := db.QueryRow(`SELECT value FROM cache_meta WHERE key = 'algorithm'`).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read cache metadata: %w", err)
	}
	if stored == c.algorithm {
		return nil
	}

	if stored != "" {
		c.logger.Info("digest algorithm changed, clearing hash cache", "from", stored, "to", c.algorithm)
		if _, err := db.Exec(`DELETE FROM file_hashes`); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
	}
	_, err = db.Exec(`INSERT INTO cache_meta (key, value) VALUES ('algorithm', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, c.algorithm)
	if err != nil {
		return fmt.Errorf("failed to write cache metadata: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (c *SQLiteCache) Path() string {
	return c.path
}

// Recovered reports the fallback in effect: ErrCacheCorrupt (wrapped) if the
// store was regenerated on open, ErrCacheUnavailable (wrapped) once the cache
// runs in memory, or nil.
func (c *SQLiteCache) Recovered() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recovered
}

// Volatile reports whether the cache has fallen back to memory.
func (c *SQLiteCache) Volatile() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.volatile != nil
}

// Get returns the stored digest when size and mtime match exactly.
func (c *SQLiteCache) Get(path string, size int64, mtime time.Time) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.volatile != nil {
		return c.volatile.Get(path, size, mtime)
	}
	if c.db == nil {
		return "", false, errors.New("database closed")
	}

	var storedSize, storedMtime int64
	var digest string
	err := c.db.QueryRow(`SELECT size, mtime, hash FROM file_hashes WHERE path = ?`, path).
		Scan(&storedSize, &storedMtime, &digest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query hash for %s: %w", path, err)
	}
	if storedSize != size || storedMtime != mtime.UnixNano() {
		return "", false, nil
	}
	return digest, true, nil
}

// Put upserts the entry for path. A failed write triggers one reopen and
// retry before the cache fails (strict) or degrades to memory.
func (c *SQLiteCache) Put(path string, size int64, mtime time.Time, digest string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	err := c.put(path, size, mtime, digest)
	if err == nil {
		return nil
	}

	c.logger.Warn("hash cache write failed, reinitializing", "path", path, "err", err)
	c.closeDB()
	if reopenErr := c.open(); reopenErr == nil {
		if err = c.put(path, size, mtime, digest); err == nil {
			return nil
		}
	} else {
		err = errors.Join(err, reopenErr)
	}

	if c.strict {
		return fmt.Errorf("%w: %v", ErrCacheFatal, err)
	}

	c.logger.Warn("hash cache unavailable, using in-memory cache", "path", c.path, "err", err)
	mem := NewMemoryCache()
	c.mu.Lock()
	c.volatile = mem
	c.recovered = fmt.Errorf("%w: %s: %v", ErrCacheUnavailable, c.path, err)
	c.mu.Unlock()
	return mem.Put(path, size, mtime, digest)
}

func (c *SQLiteCache) put(path string, size int64, mtime time.Time, digest string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.volatile != nil {
		return c.volatile.Put(path, size, mtime, digest)
	}
	if c.db == nil {
		return errors.New("database closed")
	}

	_, err := c.db.Exec(`
		INSERT INTO file_hashes (path, size, mtime, hash) VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET size = excluded.size, mtime = excluded.mtime, hash = excluded.hash
	`, path, size, mtime.UnixNano(), digest)
	if err != nil {
		return fmt.Errorf("failed to store hash for %s: %w", path, err)
	}
	return nil
}

func (c *SQLiteCache) closeDB() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		c.db.Close()
		c.db = nil
	}
}

// Close closes the database connection
func (c *SQLiteCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}
