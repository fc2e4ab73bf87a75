package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dupfinder/internal/cache"
	"dupfinder/internal/config"
	"dupfinder/internal/models"
	"dupfinder/internal/report"
)

var (
	scanOutput     string
	scanFormat     string
	scanNoProgress bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <folder>...",
	Short: "Scan folders for duplicate files",
	Long: `Scan one or more folders and report duplicate files.

The scan will:
1. Collect regular, non-empty files (optionally filtered by extension)
2. Hash only files that share their size with another file
3. Group files with identical digests as exact duplicates
4. Group the remaining files whose names are similar as potential matches

Nothing is modified. Use 'dupfinder clean' to remove duplicates.

Example:
  dupfinder scan ./videos
  dupfinder scan ~/Music ~/Downloads --ext mp3,flac
  dupfinder scan . --threshold 0.9 --format json --output report.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	addScanFlags(scanCmd)
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "", "Write the full report to this file")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "yaml", "Report format (yaml, json, text)")
	scanCmd.Flags().BoolVar(&scanNoProgress, "no-progress", false, "Hide the progress line")
	rootCmd.AddCommand(scanCmd)
}

// addScanFlags registers the flags shared by scan and clean.
func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("recursive", "r", true, "Descend into subdirectories")
	cmd.Flags().StringSlice("ext", nil, "Only consider these extensions (e.g. mp4,mkv)")
	cmd.Flags().Float64P("threshold", "t", config.DefaultThreshold, "Name similarity threshold for potential matches (0-1)")
	cmd.Flags().String("cloud", config.DefaultCloud, "Cloud placeholder handling (all, local, cloud-only)")
}

func runScan(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(scanFormat)
	if err != nil {
		return err
	}

	hc, err := openCache()
	if err != nil {
		return err
	}
	defer hc.Close()

	f, err := newFinder(hc, !scanNoProgress)
	if err != nil {
		return err
	}

	fmt.Printf("Scanning: %s\n", strings.Join(args, ", "))
	fmt.Printf("Threshold: %.2f\n\n", cfg.Threshold)

	result, err := f.Run(cmd.Context(), args)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if err := report.WriteSummary(os.Stdout, result); err != nil {
		return err
	}

	if scanOutput != "" {
		if err := writeReport(scanOutput, result, format); err != nil {
			return err
		}
		fmt.Printf("\nReport written to %s\n", scanOutput)
	}

	recordHistory(hc, result)

	if len(result.Duplicates) > 0 {
		fmt.Println()
		fmt.Println("Run 'dupfinder clean --dry-run <folder>...' to preview removals")
	}
	return nil
}

func writeReport(path string, result *models.ScanResult, format report.Format) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := report.Write(out, result, format); err != nil {
		out.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return out.Close()
}

// recordHistory stores a scan summary when the cache has a persistent store.
func recordHistory(hc cache.HashCache, result *models.ScanResult) {
	sc, ok := hc.(*cache.SQLiteCache)
	if !ok || sc.Volatile() {
		return
	}
	s := result.Summary()
	err := sc.RecordScan(cache.ScanRecord{
		Roots:           result.Metadata.Roots,
		ScannedAt:       result.Metadata.StartedAt,
		Duration:        result.Metadata.Duration(),
		TotalFiles:      s.TotalFiles,
		DuplicateGroups: s.DuplicateGroups,
		WastedSpace:     s.WastedSpace,
		PotentialGroups: s.PotentialGroups,
		Errors:          result.Metadata.ErrorCount(),
	})
	if err != nil {
		logger.Warn("failed to record scan history", "err", err)
	}
}

func formatSize(n int64) string {
	return humanize.IBytes(uint64(n))
}

func formatAge(t time.Time) string {
	return humanize.Time(t)
}
