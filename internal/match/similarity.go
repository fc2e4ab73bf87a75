package match

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Normalize strips the extension from a file name, collapses whitespace and
// lowercases it. A dotfile such as ".bashrc" has no extension and is kept whole.
func Normalize(name string) string {
	if stem := strings.TrimSuffix(name, filepath.Ext(name)); strings.Trim(stem, ".") != "" {
		name = stem
	}
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Similarity returns 1 - editDistance/maxLen over runes, in [0,1].
// It is symmetric, and two empty strings are identical.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// reachable reports whether two strings of these rune lengths could score at
// least threshold. The edit distance is never below the length difference.
func reachable(la, lb int, threshold float64) bool {
	longest := max(la, lb)
	if longest == 0 {
		return true
	}
	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	return 1-float64(diff)/float64(longest) >= threshold
}
