package match

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"unicode/utf8"

	"dupfinder/internal/models"
)

// ErrInvalidThreshold is returned for a similarity threshold or ratio
// outside [0,1].
var ErrInvalidThreshold = errors.New("threshold must be between 0 and 1")

const (
	// MaxSizeRatio is the largest size ratio allowed between two fuzzy matches.
	MaxSizeRatio = 3.0

	// MaxSeriesSizeRatio applies instead when the pair looks like a series.
	MaxSeriesSizeRatio = 1.1
)

// NameMatcher clusters files whose names are similar.
type NameMatcher struct {
	threshold  float64
	exclusions []Exclusion
}

// NameOption configures a NameMatcher.
type NameOption func(*NameMatcher)

// WithExclusions replaces the default exclusion rules. The size guard always applies.
func WithExclusions(rules ...Exclusion) NameOption {
	return func(m *NameMatcher) {
		m.exclusions = rules
	}
}

// NewNameMatcher creates a matcher accepting pairs at or above threshold.
func NewNameMatcher(threshold float64, opts ...NameOption) (*NameMatcher, error) {
	if err := checkUnit(threshold); err != nil {
		return nil, err
	}
	m := &NameMatcher{
		threshold:  threshold,
		exclusions: DefaultExclusions(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func checkUnit(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, v)
	}
	return nil
}

// Threshold returns the minimum accepted similarity.
func (m *NameMatcher) Threshold() float64 {
	return m.threshold
}

type candidate struct {
	rec    *models.FileRecord
	name   string
	length int
}

// FindGroups clusters files in the given order. Each unclaimed file seeds a
// cluster and claims every later unclaimed file it accepts. Only clusters with
// two or more members are returned, and no file appears in two groups.
func (m *NameMatcher) FindGroups(files []*models.FileRecord) []*models.PotentialMatchGroup {
	if len(files) < 2 {
		return nil
	}

	cands := make([]candidate, len(files))
	for i, f := range files {
		name := Normalize(f.Name())
		cands[i] = candidate{rec: f, name: name, length: utf8.RuneCountInString(name)}
	}

	var tree *nameTree
	if m.threshold > 0 {
		tree = newNameTree()
		for i, c := range cands {
			tree.Insert(c.name, i)
		}
	}

	claimed := make([]bool, len(cands))
	var groups []*models.PotentialMatchGroup
	for i := range cands {
		if claimed[i] {
			continue
		}
		seed := cands[i]

		type member struct {
			idx   int
			score float64
		}
		var members []member
		for _, j := range m.neighbours(tree, cands, i) {
			if claimed[j] {
				continue
			}
			if score, ok := m.accept(seed, cands[j]); ok {
				members = append(members, member{idx: j, score: score})
			}
		}
		if len(members) == 0 {
			continue
		}

		base := seed.name
		if base == "" {
			base = seed.rec.Name()
		}
		group, err := models.NewPotentialMatchGroup(base, m.threshold)
		if err != nil {
			continue
		}
		group.Add(seed.rec, 1.0)
		claimed[i] = true
		for _, mem := range members {
			group.Add(cands[mem.idx].rec, mem.score)
			claimed[mem.idx] = true
		}
		groups = append(groups, group)
	}
	return groups
}

// neighbours returns, in ascending order, the indices after seed i that
// could reach the threshold. Without a tree every later index qualifies.
func (m *NameMatcher) neighbours(tree *nameTree, cands []candidate, i int) []int {
	var out []int
	if tree == nil {
		for j := i + 1; j < len(cands); j++ {
			out = append(out, j)
		}
		return out
	}
	for _, j := range tree.Within(cands[i].name, searchRadius(cands[i].length, m.threshold)) {
		if j > i {
			out = append(out, j)
		}
	}
	slices.Sort(out)
	return out
}

// accept scores b against seed a and applies the exclusion rules, the
// threshold and the size guard in that order.
func (m *NameMatcher) accept(a, b candidate) (float64, bool) {
	if a.rec.Equal(b.rec) {
		return 0, false
	}
	// Exclusions only ever reject, so an unreachable threshold decides early.
	if !reachable(a.length, b.length, m.threshold) {
		return 0, false
	}
	for _, excluded := range m.exclusions {
		if excluded(a.name, b.name) {
			return 0, false
		}
	}

	score := Similarity(a.name, b.name)
	if score < m.threshold {
		return 0, false
	}

	ratio := sizeRatio(a.rec.Size, b.rec.Size)
	if ratio > MaxSizeRatio {
		return 0, false
	}
	if ratio > MaxSeriesSizeRatio && IsSeriesPair(a.name, b.name) {
		return 0, false
	}
	return score, true
}

// sizeRatio returns larger/smaller. An empty file against a non-empty one
// has an unbounded ratio.
func sizeRatio(a, b int64) float64 {
	small, large := min(a, b), max(a, b)
	if small <= 0 {
		if large <= 0 {
			return 1
		}
		return MaxSizeRatio + 1
	}
	return float64(large) / float64(small)
}
