package match

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// ResidualSimilarity is how alike two names must be once their numbering is
// stripped for the numbering to count as the only difference.
const ResidualSimilarity = 0.9

// Exclusion reports whether a pair of normalized names must never be grouped
// as a fuzzy match.
type Exclusion func(a, b string) bool

// DefaultExclusions returns the built-in rules in priority order.
func DefaultExclusions() []Exclusion {
	return []Exclusion{
		SeriesMarker,
		TimestampVariant,
		NumberedCopy,
		TrailingNumber,
	}
}

var (
	seasonEpisodePattern = regexp.MustCompile(`\bs(\d{1,2})[\s._-]*e(\d{1,3})\b`)
	seriesMarkerPattern  = regexp.MustCompile(`\b(?:part|pt|episode|ep|volume|vol|chapter|chap|ch|season|disc|disk|cd)[\s._-]*(\d+)\b`)
	leadingTrackPattern  = regexp.MustCompile(`^(\d{1,3})[\s._-]+`)

	timestampPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}[-_.]?\d{2}[-_.]?\d{2}[\sT_-]?\d{2}[-_.:h]?\d{2}(?:[-_.:m]?\d{2})?`),
		regexp.MustCompile(`\b\d{1,2}[-_.:]\d{2}[-_.:]\d{2}\b`),
		regexp.MustCompile(`\b\d{10}(?:\d{3})?\b`),
	}

	numberedCopyPattern   = regexp.MustCompile(`^(.*?)\s*\((\d+)\)$`)
	trailingNumberPattern = regexp.MustCompile(`^(.*?)[\s._-]*(\d+)$`)
)

// seriesInfo is a name split into its sequence numbers and the rest.
type seriesInfo struct {
	numbers  []int
	residual string
}

func parseSeries(name string) seriesInfo {
	var info seriesInfo
	rest := name

	take := func(re *regexp.Regexp) {
		for _, m := range re.FindAllStringSubmatch(rest, -1) {
			for _, g := range m[1:] {
				n, _ := strconv.Atoi(g)
				info.numbers = append(info.numbers, n)
			}
		}
		rest = re.ReplaceAllString(rest, " ")
	}
	take(seasonEpisodePattern)
	take(seriesMarkerPattern)
	take(leadingTrackPattern)

	info.residual = strings.Join(strings.Fields(rest), " ")
	return info
}

func (s seriesInfo) marked() bool {
	return len(s.numbers) > 0
}

// seriesPair reports whether both names carry series numbering that differs
// while the rest of the name is nearly the same.
func seriesPair(a, b seriesInfo) bool {
	if !a.marked() || !b.marked() || slices.Equal(a.numbers, b.numbers) {
		return false
	}
	return Similarity(a.residual, b.residual) >= ResidualSimilarity
}

// IsSeriesPair reports whether a and b look like different entries of one
// series, such as "show part 1" and "show part 2" or "show s01e02" and
// "show s01e03".
func IsSeriesPair(a, b string) bool {
	return seriesPair(parseSeries(a), parseSeries(b))
}

// SeriesMarker excludes different parts, episodes, volumes or chapters of
// the same work.
func SeriesMarker(a, b string) bool {
	return IsSeriesPair(a, b)
}

// TimestampVariant excludes names that are identical apart from a
// fine-grained timestamp, such as successive screenshots or recordings.
func TimestampVariant(a, b string) bool {
	restA, tsA := stripTimestamps(a)
	restB, tsB := stripTimestamps(b)
	if len(tsA) == 0 || len(tsB) == 0 {
		return false
	}
	return restA == restB && !slices.Equal(tsA, tsB)
}

func stripTimestamps(name string) (string, []string) {
	var found []string
	for _, re := range timestampPatterns {
		found = append(found, re.FindAllString(name, -1)...)
		name = re.ReplaceAllString(name, " ")
	}
	return strings.Join(strings.Fields(name), " "), found
}

// NumberedCopy excludes browser and file-manager copies such as "movie (1)"
// and "movie (2)". A name without a suffix differs from one with a suffix.
func NumberedCopy(a, b string) bool {
	restA, nA, okA := splitNumberedCopy(a)
	restB, nB, okB := splitNumberedCopy(b)
	if !okA && !okB {
		return false
	}
	if okA && okB && nA == nB {
		return false
	}
	return Similarity(restA, restB) >= ResidualSimilarity
}

// splitNumberedCopy splits "name (3)" into "name" and 3.
func splitNumberedCopy(name string) (string, int, bool) {
	m := numberedCopyPattern.FindStringSubmatch(name)
	if m == nil {
		return name, 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return name, 0, false
	}
	return m[1], n, true
}

// IsNumberedCopy reports whether a file name, with or without extension,
// ends in a parenthesized copy number, and returns that number.
func IsNumberedCopy(name string) (int, bool) {
	_, n, ok := splitNumberedCopy(Normalize(name))
	return n, ok
}

// TrailingNumber excludes names that differ only in a trailing number, such
// as "img_001" and "img_002".
func TrailingNumber(a, b string) bool {
	ma := trailingNumberPattern.FindStringSubmatch(a)
	mb := trailingNumberPattern.FindStringSubmatch(b)
	if ma == nil || mb == nil {
		return false
	}
	if strings.TrimLeft(ma[2], "0") == strings.TrimLeft(mb[2], "0") {
		return false
	}
	return Similarity(ma[1], mb[1]) >= ResidualSimilarity
}
