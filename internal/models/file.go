package models

import (
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileRecord is a file discovered by a scan. Identity is the absolute path.
type FileRecord struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Remote  bool      `json:"remote,omitempty"` // cloud placeholder, not materialized locally

	mu        sync.Mutex
	computed  bool
	digest    string
	digestErr error
}

// NewFileRecord builds a record for path with already-known metadata.
func NewFileRecord(path string, size int64, modTime time.Time) *FileRecord {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &FileRecord{
		Path:    filepath.Clean(path),
		Size:    size,
		ModTime: modTime,
	}
}

// Equal reports whether both records refer to the same path.
func (f *FileRecord) Equal(other *FileRecord) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.Path == other.Path
}

// Name returns the base file name.
func (f *FileRecord) Name() string {
	return filepath.Base(f.Path)
}

// Extension returns the lowercased extension including the leading dot.
func (f *FileRecord) Extension() string {
	return strings.ToLower(filepath.Ext(f.Path))
}

// Digest returns the content digest, invoking compute at most once per record.
// A failed computation is remembered as well; concurrent callers wait for the
// first one to finish.
func (f *FileRecord) Digest(compute func() (string, error)) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.computed {
		f.digest, f.digestErr = compute()
		f.computed = true
	}
	return f.digest, f.digestErr
}

// CachedDigest returns the digest if one has been computed successfully.
func (f *FileRecord) CachedDigest() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.digest, f.computed && f.digestErr == nil
}
