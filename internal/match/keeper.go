package match

import (
	"fmt"
	"strings"

	"dupfinder/internal/models"
)

// KeepStrategy chooses which member of a duplicate group survives a clean.
type KeepStrategy string

const (
	KeepShortest KeepStrategy = "shortest" // shortest path, usually the original location
	KeepOldest   KeepStrategy = "oldest"
	KeepNewest   KeepStrategy = "newest"
)

// ParseKeepStrategy resolves a strategy name. Empty means KeepShortest.
func ParseKeepStrategy(s string) (KeepStrategy, error) {
	switch k := KeepStrategy(strings.ToLower(s)); k {
	case "":
		return KeepShortest, nil
	case KeepShortest, KeepOldest, KeepNewest:
		return k, nil
	default:
		return "", fmt.Errorf("unknown keep strategy %q", s)
	}
}

// SelectKeeper picks the file to keep and returns the rest, in path order,
// for removal. Numbered copies such as "report (2).pdf" lose to an
// un-numbered member, and among numbered copies the lowest number wins.
// The strategy decides among what is left; ties keep path order.
func SelectKeeper(group *models.DuplicateGroup, strategy KeepStrategy) (*models.FileRecord, []*models.FileRecord) {
	if len(group.Files) == 0 {
		return nil, nil
	}

	// Members sharing the best copy rank: 0 for un-numbered, N+1 for "(N)".
	bestRank := -1
	var tier []*models.FileRecord
	for _, f := range group.Files {
		rank := 0
		if n, numbered := IsNumberedCopy(f.Name()); numbered {
			rank = n + 1
		}
		switch {
		case bestRank < 0 || rank < bestRank:
			bestRank = rank
			tier = []*models.FileRecord{f}
		case rank == bestRank:
			tier = append(tier, f)
		}
	}

	candidates := &models.DuplicateGroup{Digest: group.Digest, Size: group.Size, Files: tier}
	var keep *models.FileRecord
	switch strategy {
	case KeepOldest:
		keep = candidates.Oldest()
	case KeepNewest:
		keep = candidates.Newest()
	default:
		keep = candidates.ShortestPath()
	}

	remove := make([]*models.FileRecord, 0, len(group.Files)-1)
	for _, f := range group.Files {
		if f != keep {
			remove = append(remove, f)
		}
	}
	return keep, remove
}
