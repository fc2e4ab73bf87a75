package models

import (
	"fmt"
	"sort"
)

// DuplicateGroup is a set of files with identical size and content digest.
type DuplicateGroup struct {
	Digest string
	Size   int64
	Files  []*FileRecord

	// LikelySeries is set when the size-group this digest came from looked
	// like a numbered series. Informational only.
	LikelySeries bool
}

// NewDuplicateGroup creates a group from files sharing digest. Members are
// ordered by path. It returns an error if fewer than two files are given or if
// the sizes disagree.
func NewDuplicateGroup(digest string, files []*FileRecord) (*DuplicateGroup, error) {
	if digest == "" {
		return nil, fmt.Errorf("duplicate group requires a digest")
	}
	if len(files) < 2 {
		return nil, fmt.Errorf("duplicate group requires at least 2 files, got %d", len(files))
	}
	size := files[0].Size
	for _, f := range files[1:] {
		if f.Size != size {
			return nil, fmt.Errorf("size mismatch in group %s: %s has %d bytes, want %d", digest, f.Path, f.Size, size)
		}
	}

	sorted := make([]*FileRecord, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	return &DuplicateGroup{Digest: digest, Size: size, Files: sorted}, nil
}

// Count returns the number of members.
func (g *DuplicateGroup) Count() int {
	return len(g.Files)
}

// TotalSize returns the combined size of all members.
func (g *DuplicateGroup) TotalSize() int64 {
	return g.Size * int64(len(g.Files))
}

// WastedSpace returns the bytes recoverable by keeping a single copy.
func (g *DuplicateGroup) WastedSpace() int64 {
	if len(g.Files) < 2 {
		return 0
	}
	return g.Size * int64(len(g.Files)-1)
}

// Contains reports whether path is a member.
func (g *DuplicateGroup) Contains(path string) bool {
	for _, f := range g.Files {
		if f.Path == path {
			return true
		}
	}
	return false
}

// Oldest returns the member with the earliest modification time.
func (g *DuplicateGroup) Oldest() *FileRecord {
	return g.pick(func(a, b *FileRecord) bool { return a.ModTime.Before(b.ModTime) })
}

// Newest returns the member with the latest modification time.
func (g *DuplicateGroup) Newest() *FileRecord {
	return g.pick(func(a, b *FileRecord) bool { return a.ModTime.After(b.ModTime) })
}

// ShortestPath returns the member with the shortest path, usually the original.
func (g *DuplicateGroup) ShortestPath() *FileRecord {
	return g.pick(func(a, b *FileRecord) bool { return len(a.Path) < len(b.Path) })
}

// pick returns the first member for which better holds against every other;
// ties keep path order.
func (g *DuplicateGroup) pick(better func(a, b *FileRecord) bool) *FileRecord {
	if len(g.Files) == 0 {
		return nil
	}
	best := g.Files[0]
	for _, f := range g.Files[1:] {
		if better(f, best) {
			best = f
		}
	}
	return best
}

// ScoredFile is a potential-match member and its similarity to the group base.
type ScoredFile struct {
	File       *FileRecord
	Similarity float64
}

// PotentialMatchGroup is a set of files whose names are similar to BaseName.
type PotentialMatchGroup struct {
	BaseName  string
	Threshold float64
	Files     []ScoredFile
}

// NewPotentialMatchGroup creates an empty group. The threshold must lie in [0,1].
func NewPotentialMatchGroup(baseName string, threshold float64) (*PotentialMatchGroup, error) {
	if baseName == "" {
		return nil, fmt.Errorf("base name cannot be empty")
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("similarity threshold %v outside [0,1]", threshold)
	}
	return &PotentialMatchGroup{BaseName: baseName, Threshold: threshold}, nil
}

// Add appends a member. Scores below the threshold are rejected.
func (g *PotentialMatchGroup) Add(f *FileRecord, similarity float64) error {
	if similarity < g.Threshold {
		return fmt.Errorf("similarity %.3f below threshold %.3f for %s", similarity, g.Threshold, f.Path)
	}
	for _, m := range g.Files {
		if m.File.Equal(f) {
			return nil
		}
	}
	g.Files = append(g.Files, ScoredFile{File: f, Similarity: similarity})
	return nil
}

// Count returns the number of members.
func (g *PotentialMatchGroup) Count() int {
	return len(g.Files)
}

// AverageSimilarity returns the mean member score.
func (g *PotentialMatchGroup) AverageSimilarity() float64 {
	if len(g.Files) == 0 {
		return 0
	}
	var sum float64
	for _, m := range g.Files {
		sum += m.Similarity
	}
	return sum / float64(len(g.Files))
}

// TotalSize returns the combined size of all members.
func (g *PotentialMatchGroup) TotalSize() int64 {
	var total int64
	for _, m := range g.Files {
		total += m.File.Size
	}
	return total
}

// Extensions returns the sorted set of member extensions.
func (g *PotentialMatchGroup) Extensions() []string {
	seen := make(map[string]struct{})
	for _, m := range g.Files {
		seen[m.File.Extension()] = struct{}{}
	}
	exts := make([]string, 0, len(seen))
	for e := range seen {
		exts = append(exts, e)
	}
	sort.Strings(exts)
	return exts
}

// SortedBySimilarity returns members by descending score, then by path.
func (g *PotentialMatchGroup) SortedBySimilarity() []ScoredFile {
	out := make([]ScoredFile, len(g.Files))
	copy(out, g.Files)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].File.Path < out[j].File.Path
	})
	return out
}

// UpdateThreshold raises or lowers the threshold and drops members that no
// longer qualify. The removed members are returned.
func (g *PotentialMatchGroup) UpdateThreshold(threshold float64) ([]*FileRecord, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("similarity threshold %v outside [0,1]", threshold)
	}
	g.Threshold = threshold

	var removed []*FileRecord
	kept := g.Files[:0]
	for _, m := range g.Files {
		if m.Similarity < threshold {
			removed = append(removed, m.File)
			continue
		}
		kept = append(kept, m)
	}
	g.Files = kept
	return removed, nil
}

// SeriesGroup records a size-group flagged as a likely numbered series.
type SeriesGroup struct {
	Size      int64
	Paths     []string
	PairRatio float64
}
