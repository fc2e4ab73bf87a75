package models

import (
	"sort"
	"sync"
	"time"
)

// ErrorKind classifies a per-file problem recorded during a scan.
type ErrorKind string

const (
	KindFileUnreadable ErrorKind = "file_unreadable"
	KindStatFailed     ErrorKind = "stat_failed"
	KindWalkFailed     ErrorKind = "walk_failed"
	KindCacheError     ErrorKind = "cache_error"
)

// ErrorRecord is a recoverable per-file error.
type ErrorRecord struct {
	File    string    `json:"file" yaml:"file"`
	Kind    ErrorKind `json:"kind" yaml:"kind"`
	Message string    `json:"error" yaml:"error"`
}

// SkipRecord is a file left out of duplicate detection on purpose.
type SkipRecord struct {
	File   string `json:"file" yaml:"file"`
	Reason string `json:"reason" yaml:"reason"`
}

// Skip reasons.
const (
	SkipRemote = "remote-only, not hashed"
)

// ScanMetadata accumulates counters, errors and skips for one scan.
// It is safe for concurrent use and satisfies the error sink interface
// consumed by the scanner and detector.
type ScanMetadata struct {
	mu sync.Mutex

	Roots     []string
	StartedAt time.Time
	EndedAt   time.Time

	FilesFound   int
	FilesHashed  int
	CacheHits    int
	HashDuration time.Duration
	Errors       []ErrorRecord
	Skipped      []SkipRecord
	SeriesGroups []SeriesGroup
}

// NewScanMetadata starts a metadata record for roots.
func NewScanMetadata(roots []string) *ScanMetadata {
	return &ScanMetadata{Roots: roots, StartedAt: time.Now()}
}

// RecordError appends a per-file error.
func (m *ScanMetadata) RecordError(path string, kind ErrorKind, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	m.mu.Lock()
	m.Errors = append(m.Errors, ErrorRecord{File: path, Kind: kind, Message: msg})
	m.mu.Unlock()
}

// RecordSkip appends a skipped file.
func (m *ScanMetadata) RecordSkip(path, reason string) {
	m.mu.Lock()
	m.Skipped = append(m.Skipped, SkipRecord{File: path, Reason: reason})
	m.mu.Unlock()
}

// AddHashed counts files hashed from disk and the time spent doing it.
func (m *ScanMetadata) AddHashed(n int, d time.Duration) {
	m.mu.Lock()
	m.FilesHashed += n
	m.HashDuration += d
	m.mu.Unlock()
}

// AddCacheHits counts digests served from the hash cache.
func (m *ScanMetadata) AddCacheHits(n int) {
	m.mu.Lock()
	m.CacheHits += n
	m.mu.Unlock()
}

// Finish stamps the end time.
func (m *ScanMetadata) Finish() {
	m.mu.Lock()
	m.EndedAt = time.Now()
	m.mu.Unlock()
}

// Duration returns the elapsed scan time.
func (m *ScanMetadata) Duration() time.Duration {
	if m.EndedAt.IsZero() {
		return time.Since(m.StartedAt)
	}
	return m.EndedAt.Sub(m.StartedAt)
}

// ErrorCount returns the number of recorded errors.
func (m *ScanMetadata) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Errors)
}

// SkipCount returns the number of recorded skips.
func (m *ScanMetadata) SkipCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Skipped)
}

// ScanResult is the complete output of a scan.
type ScanResult struct {
	Files            []*FileRecord
	Duplicates       []*DuplicateGroup
	PotentialMatches []*PotentialMatchGroup
	Metadata         *ScanMetadata
}

// SortDuplicates orders duplicate groups by wasted space, largest first,
// then by digest.
func (r *ScanResult) SortDuplicates() {
	sort.SliceStable(r.Duplicates, func(i, j int) bool {
		a, b := r.Duplicates[i], r.Duplicates[j]
		if a.WastedSpace() != b.WastedSpace() {
			return a.WastedSpace() > b.WastedSpace()
		}
		return a.Digest < b.Digest
	})
}

// SortPotentialMatches orders potential groups by average similarity,
// highest first, then by base name.
func (r *ScanResult) SortPotentialMatches() {
	sort.SliceStable(r.PotentialMatches, func(i, j int) bool {
		a, b := r.PotentialMatches[i], r.PotentialMatches[j]
		if a.AverageSimilarity() != b.AverageSimilarity() {
			return a.AverageSimilarity() > b.AverageSimilarity()
		}
		return a.BaseName < b.BaseName
	})
}

// Summary holds the headline numbers of a scan.
type Summary struct {
	TotalFiles      int     `json:"total_files" yaml:"total_files"`
	TotalSize       int64   `json:"total_size" yaml:"total_size"`
	DuplicateGroups int     `json:"duplicate_groups" yaml:"duplicate_groups"`
	DuplicateFiles  int     `json:"duplicate_files" yaml:"duplicate_files"`
	WastedSpace     int64   `json:"wasted_space" yaml:"wasted_space"`
	UniqueFiles     int     `json:"unique_files" yaml:"unique_files"`
	PotentialGroups int     `json:"potential_match_groups" yaml:"potential_match_groups"`
	PotentialFiles  int     `json:"potential_match_files" yaml:"potential_match_files"`
	SavingsPercent  float64 `json:"savings_percent" yaml:"savings_percent"`
}

// Summary computes the headline numbers.
func (r *ScanResult) Summary() Summary {
	s := Summary{
		TotalFiles:      len(r.Files),
		DuplicateGroups: len(r.Duplicates),
		PotentialGroups: len(r.PotentialMatches),
	}
	for _, f := range r.Files {
		s.TotalSize += f.Size
	}
	for _, g := range r.Duplicates {
		s.DuplicateFiles += g.Count()
		s.WastedSpace += g.WastedSpace()
	}
	for _, g := range r.PotentialMatches {
		s.PotentialFiles += g.Count()
	}
	// Each duplicate group keeps one copy.
	s.UniqueFiles = s.TotalFiles - s.DuplicateFiles + s.DuplicateGroups
	if s.TotalSize > 0 {
		s.SavingsPercent = float64(s.WastedSpace) / float64(s.TotalSize) * 100
	}
	return s
}
