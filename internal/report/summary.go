package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"dupfinder/internal/models"
)

// WriteSummary prints a human-readable overview of r.
func WriteSummary(w io.Writer, r *models.ScanResult) error {
	s := r.Summary()
	b := &strings.Builder{}

	fmt.Fprintf(b, "Scanned %d files (%s)", s.TotalFiles, humanize.IBytes(uint64(s.TotalSize)))
	if m := r.Metadata; m != nil {
		fmt.Fprintf(b, " in %s", formatDuration(m.Duration()))
	}
	b.WriteString("\n")

	if len(r.Duplicates) == 0 {
		b.WriteString("No exact duplicates found.\n")
	} else {
		fmt.Fprintf(b, "\nFound %d duplicate groups (%d files, %s wasted, %.1f%% savings):\n",
			s.DuplicateGroups, s.DuplicateFiles, humanize.IBytes(uint64(s.WastedSpace)), s.SavingsPercent)
		for i, g := range r.Duplicates {
			fmt.Fprintf(b, "\nGroup %d: %d files, %s each, %s wasted\n",
				i+1, g.Count(), humanize.IBytes(uint64(g.Size)), humanize.IBytes(uint64(g.WastedSpace())))
			for _, f := range g.Files {
				fmt.Fprintf(b, "  %s\n", f.Path)
			}
		}
	}

	if len(r.PotentialMatches) > 0 {
		fmt.Fprintf(b, "\nFound %d potential match groups (%d files):\n", s.PotentialGroups, s.PotentialFiles)
		for i, g := range r.PotentialMatches {
			fmt.Fprintf(b, "\nMatch %d: %q, average similarity %.0f%%\n",
				i+1, g.BaseName, g.AverageSimilarity()*100)
			for _, sf := range g.SortedBySimilarity() {
				fmt.Fprintf(b, "  %3.0f%%  %s (%s)\n",
					sf.Similarity*100, sf.File.Path, humanize.IBytes(uint64(sf.File.Size)))
			}
		}
	}

	if m := r.Metadata; m != nil {
		if n := m.ErrorCount(); n > 0 {
			fmt.Fprintf(b, "\n%d files could not be read\n", n)
		}
		if n := m.SkipCount(); n > 0 {
			fmt.Fprintf(b, "%d files skipped\n", n)
		}
		if m.CacheHits > 0 || m.FilesHashed > 0 {
			fmt.Fprintf(b, "Hashed %d files, %d served from cache\n", m.FilesHashed, m.CacheHits)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
