package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func openSQLite(t *testing.T, path string, opts ...Option) *SQLiteCache {
	t.Helper()
	c, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	sc, ok := c.(*SQLiteCache)
	if !ok {
		t.Fatalf("Open returned %T, want *SQLiteCache", c)
	}
	t.Cleanup(func() { sc.Close() })
	return sc
}

func TestOpen_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "hashes.db")
	c := openSQLite(t, dbPath)

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
	if c.Recovered() != nil {
		t.Errorf("Recovered = %v, want nil", c.Recovered())
	}
}

func TestSQLiteCache_GetPut(t *testing.T) {
	c := openSQLite(t, filepath.Join(t.TempDir(), "hashes.db"))
	mtime := time.Unix(1700000000, 123456789)

	if _, ok, err := c.Get("/a", 10, mtime); ok || err != nil {
		t.Fatalf("Get on empty cache = %v, %v", ok, err)
	}

	if err := c.Put("/a", 10, mtime, "abc"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	digest, ok, err := c.Get("/a", 10, mtime)
	if err != nil || !ok || digest != "abc" {
		t.Errorf("Get = %q, %v, %v, want abc, true, nil", digest, ok, err)
	}

	// Validity requires an exact size and mtime match.
	if _, ok, _ := c.Get("/a", 11, mtime); ok {
		t.Error("size mismatch should be a miss")
	}
	if _, ok, _ := c.Get("/a", 10, mtime.Add(time.Nanosecond)); ok {
		t.Error("mtime mismatch should be a miss")
	}
}

func TestSQLiteCache_Upsert(t *testing.T) {
	c := openSQLite(t, filepath.Join(t.TempDir(), "hashes.db"))
	t1 := time.Unix(1000, 0)
	t2 := time.Unix(2000, 0)

	if err := c.Put("/a", 10, t1, "old"); err != nil {
		t.Fatal(err)
	}
	if err := c.Put("/a", 20, t2, "new"); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := c.Get("/a", 10, t1); ok {
		t.Error("old entry should have been replaced")
	}
	if d, ok, _ := c.Get("/a", 20, t2); !ok || d != "new" {
		t.Errorf("Get = %q, %v, want new", d, ok)
	}

	st, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if st.Entries != 1 {
		t.Errorf("Entries = %d, want 1 (one row per path)", st.Entries)
	}
}

func TestSQLiteCache_PersistsAcrossOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "hashes.db")
	mtime := time.Unix(1700000000, 42)

	first, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Put("/a", 5, mtime, "digest"); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second := openSQLite(t, dbPath)
	if d, ok, _ := second.Get("/a", 5, mtime); !ok || d != "digest" {
		t.Errorf("Get after reopen = %q, %v", d, ok)
	}
}

func TestOpen_CorruptStoreIsArchived(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "hashes.db")
	garbage := []byte(strings.Repeat("this is not a sqlite database ", 200))
	if err := os.WriteFile(dbPath, garbage, 0644); err != nil {
		t.Fatal(err)
	}

	c := openSQLite(t, dbPath)
	if !errors.Is(c.Recovered(), ErrCacheCorrupt) {
		t.Errorf("Recovered = %v, want ErrCacheCorrupt", c.Recovered())
	}

	matches, _ := filepath.Glob(dbPath + ".corrupt-*")
	if len(matches) != 1 {
		t.Errorf("archived stores = %v, want exactly one", matches)
	}

	if err := c.Put("/a", 1, time.Unix(1, 0), "x"); err != nil {
		t.Errorf("Put on regenerated cache failed: %v", err)
	}
}

func TestOpen_UnavailableFallsBackToMemory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	// The parent "directory" is a regular file, so nothing can be created.
	dbPath := filepath.Join(blocker, "hashes.db")

	c := openSQLite(t, dbPath)
	if !c.Volatile() {
		t.Error("Volatile = false, want true")
	}
	if !errors.Is(c.Recovered(), ErrCacheUnavailable) {
		t.Errorf("Recovered = %v, want ErrCacheUnavailable", c.Recovered())
	}
	mtime := time.Unix(5, 0)
	c.Put("/a", 1, mtime, "x")
	if d, ok, _ := c.Get("/a", 1, mtime); !ok || d != "x" {
		t.Errorf("memory fallback Get = %q, %v", d, ok)
	}
}

// breakStore closes the open database and turns its directory into a regular
// file, so both the next write and the reopen fail.
func breakStore(t *testing.T, c *SQLiteCache) {
	t.Helper()
	c.closeDB()
	dir := filepath.Dir(c.Path())
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestSQLiteCache_PutFailureFallsBackToMemory(t *testing.T) {
	c := openSQLite(t, filepath.Join(t.TempDir(), "store", "hashes.db"))
	mtime := time.Unix(7, 0)
	if err := c.Put("/before", 1, mtime, "old"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	breakStore(t, c)

	if err := c.Put("/a", 10, mtime, "digest-a"); err != nil {
		t.Fatalf("Put after failure = %v, want nil", err)
	}
	if !c.Volatile() {
		t.Fatal("Volatile = false, want true")
	}
	if !errors.Is(c.Recovered(), ErrCacheUnavailable) {
		t.Errorf("Recovered = %v, want ErrCacheUnavailable", c.Recovered())
	}
	if d, ok, err := c.Get("/a", 10, mtime); err != nil || !ok || d != "digest-a" {
		t.Errorf("Get = %q, %v, %v; want digest-a from memory", d, ok, err)
	}
	if _, err := c.Stats(); err == nil {
		t.Error("Stats on volatile cache succeeded, want error")
	}
}

func TestSQLiteCache_PutFailureStrictIsFatal(t *testing.T) {
	c := openSQLite(t, filepath.Join(t.TempDir(), "store", "hashes.db"), WithStrict(true))

	breakStore(t, c)

	err := c.Put("/a", 10, time.Unix(7, 0), "digest-a")
	if !errors.Is(err, ErrCacheFatal) {
		t.Fatalf("Put error = %v, want ErrCacheFatal", err)
	}
	if c.Volatile() {
		t.Error("strict cache switched to memory")
	}
}

func TestOpen_StrictFailsFatally(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Open(filepath.Join(blocker, "hashes.db"), WithStrict(true))
	if !errors.Is(err, ErrCacheFatal) {
		t.Errorf("err = %v, want ErrCacheFatal", err)
	}
	if c != nil {
		t.Errorf("cache = %T, want nil", c)
	}
}

func TestOpen_EmptyPathIsNop(t *testing.T) {
	c, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(NopCache); !ok {
		t.Fatalf("Open(\"\") returned %T, want NopCache", c)
	}
	c.Put("/a", 1, time.Unix(1, 0), "x")
	if _, ok, _ := c.Get("/a", 1, time.Unix(1, 0)); ok {
		t.Error("NopCache should never hit")
	}
}

func TestOpen_AlgorithmChangeClearsEntries(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "hashes.db")
	mtime := time.Unix(10, 0)

	first, err := Open(dbPath, WithAlgorithm("blake2b"))
	if err != nil {
		t.Fatal(err)
	}
	first.Put("/a", 1, mtime, "b2")
	first.Close()

	same, err := Open(dbPath, WithAlgorithm("blake2b"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := same.Get("/a", 1, mtime); !ok {
		t.Error("entry should survive reopen with the same algorithm")
	}
	same.Close()

	other := openSQLite(t, dbPath, WithAlgorithm("sha256"))
	if _, ok, _ := other.Get("/a", 1, mtime); ok {
		t.Error("entry from another algorithm should be discarded")
	}
	st, _ := other.Stats()
	if st.Algorithm != "sha256" {
		t.Errorf("Algorithm = %q, want sha256", st.Algorithm)
	}
}

func TestSQLiteCache_ConcurrentAccess(t *testing.T) {
	c := openSQLite(t, filepath.Join(t.TempDir(), "hashes.db"))
	mtime := time.Unix(99, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := filepath.Join("/files", string(rune('a'+i)))
			if err := c.Put(path, int64(i), mtime, "d"); err != nil {
				t.Errorf("Put failed: %v", err)
			}
			if _, ok, err := c.Get(path, int64(i), mtime); err != nil || !ok {
				t.Errorf("Get(%s) = %v, %v", path, ok, err)
			}
		}(i)
	}
	wg.Wait()

	st, _ := c.Stats()
	if st.Entries != 8 {
		t.Errorf("Entries = %d, want 8", st.Entries)
	}
}

func TestSQLiteCache_Prune(t *testing.T) {
	dir := t.TempDir()
	c := openSQLite(t, filepath.Join(dir, "hashes.db"))

	kept := filepath.Join(dir, "kept.txt")
	changed := filepath.Join(dir, "changed.txt")
	for _, p := range []string{kept, changed} {
		if err := os.WriteFile(p, []byte("content"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	keptInfo, _ := os.Stat(kept)
	changedInfo, _ := os.Stat(changed)

	c.Put(kept, keptInfo.Size(), keptInfo.ModTime(), "k")
	c.Put(changed, changedInfo.Size()+1, changedInfo.ModTime(), "c")
	c.Put(filepath.Join(dir, "gone.txt"), 3, time.Unix(1, 0), "g")

	n, err := c.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Prune removed %d, want 2", n)
	}
	if _, ok, _ := c.Get(kept, keptInfo.Size(), keptInfo.ModTime()); !ok {
		t.Error("valid entry should survive prune")
	}
}

func TestSQLiteCache_Clear(t *testing.T) {
	c := openSQLite(t, filepath.Join(t.TempDir(), "hashes.db"))
	c.Put("/a", 1, time.Unix(1, 0), "x")
	c.Put("/b", 1, time.Unix(1, 0), "y")

	n, err := c.Clear()
	if err != nil || n != 2 {
		t.Errorf("Clear = %d, %v, want 2, nil", n, err)
	}
	st, _ := c.Stats()
	if st.Entries != 0 {
		t.Errorf("Entries = %d after Clear", st.Entries)
	}
}

func TestSQLiteCache_History(t *testing.T) {
	c := openSQLite(t, filepath.Join(t.TempDir(), "hashes.db"))

	older := ScanRecord{Roots: []string{"/a"}, ScannedAt: time.Unix(1000, 0), TotalFiles: 3}
	newer := ScanRecord{
		Roots:           []string{"/b", "/c"},
		ScannedAt:       time.Unix(2000, 0),
		Duration:        1500 * time.Millisecond,
		TotalFiles:      10,
		DuplicateGroups: 2,
		WastedSpace:     4096,
		PotentialGroups: 1,
		Errors:          1,
	}
	for _, r := range []ScanRecord{older, newer} {
		if err := c.RecordScan(r); err != nil {
			t.Fatalf("RecordScan failed: %v", err)
		}
	}

	all, err := c.History(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("History returned %d records, want 2", len(all))
	}
	got := all[0]
	if len(got.Roots) != 2 || got.Roots[1] != "/c" {
		t.Errorf("Roots = %v", got.Roots)
	}
	if got.Duration != newer.Duration || got.WastedSpace != 4096 || got.Errors != 1 {
		t.Errorf("newest record = %+v", got)
	}

	limited, _ := c.History(1)
	if len(limited) != 1 || limited[0].TotalFiles != 10 {
		t.Errorf("History(1) = %+v", limited)
	}
}

func TestMemoryCache(t *testing.T) {
	m := NewMemoryCache()
	mtime := time.Unix(7, 7)
	m.Put("/a", 3, mtime, "x")

	if d, ok, _ := m.Get("/a", 3, mtime); !ok || d != "x" {
		t.Errorf("Get = %q, %v", d, ok)
	}
	if _, ok, _ := m.Get("/a", 4, mtime); ok {
		t.Error("size mismatch should miss")
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}
