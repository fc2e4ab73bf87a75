package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dupfinder/internal/fileutil"
	"dupfinder/internal/match"
)

var (
	dryRun    bool
	moveTo    string
	noConfirm bool
	keepFlag  string
)

var cleanCmd = &cobra.Command{
	Use:   "clean <folder>...",
	Short: "Remove or move exact duplicates",
	Long: `Rescan folders and remove exact duplicates, keeping one copy of each.

The clean command will:
1. Rescan the folders (digests come from the cache when unchanged)
2. Keep one file per duplicate group, chosen by --keep
3. Move the other copies to the trash (default) or to --move-to

Browser-style copies such as "report (1).pdf" are never kept when the
un-numbered original is in the same group. Potential matches by name are
never touched.

Options:
  --keep        Which copy survives: shortest (path), oldest, newest
  --dry-run     Preview what would be removed without actually removing
  --move-to     Move duplicates to a specific folder
  --yes         Skip confirmation prompt

Example:
  dupfinder clean ./photos                     # Move to trash
  dupfinder clean ./photos --move-to=./backup  # Move to a specific folder
  dupfinder clean ./photos --keep oldest --dry-run`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClean,
}

func init() {
	addScanFlags(cleanCmd)
	cleanCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview without removing")
	cleanCmd.Flags().StringVar(&moveTo, "move-to", "", "Move duplicates to this folder")
	cleanCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	cleanCmd.Flags().StringVar(&keepFlag, "keep", string(match.KeepShortest), "Copy to keep (shortest, oldest, newest)")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	strategy, err := match.ParseKeepStrategy(keepFlag)
	if err != nil {
		return err
	}

	hc, err := openCache()
	if err != nil {
		return err
	}
	defer hc.Close()

	f, err := newFinder(hc, false)
	if err != nil {
		return err
	}
	result, err := f.Run(cmd.Context(), args)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(result.Duplicates) == 0 {
		fmt.Println("No duplicate groups found.")
		return nil
	}

	// Collect files to remove
	var toRemove []string
	var totalSize int64
	for i, group := range result.Duplicates {
		keep, remove := match.SelectKeeper(group, strategy)
		fmt.Printf("Group %d (%s each)\n", i+1, formatSize(group.Size))
		fmt.Printf("  ✓ %s\n", keep.Path)
		for _, rec := range remove {
			fmt.Printf("  ✗ %s\n", rec.Path)
			toRemove = append(toRemove, rec.Path)
			totalSize += rec.Size
		}
	}
	fmt.Println()

	action := "move to trash"
	if moveTo != "" {
		action = fmt.Sprintf("move to %s", moveTo)
	}
	fmt.Printf("Will %s %d files (%s)\n\n", action, len(toRemove), formatSize(totalSize))

	if dryRun {
		fmt.Println("(Dry run - no files were modified)")
		fmt.Println("Run without --dry-run to actually remove files.")
		return nil
	}

	// Confirm unless --yes flag is set
	if !noConfirm {
		fmt.Printf("Are you sure you want to %s %d files? [y/N]: ", action, len(toRemove))
		reader := bufio.NewReader(os.Stdin)
		response, _ := reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if moveTo != "" {
		if err := os.MkdirAll(moveTo, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", moveTo, err)
		}
	}

	var processed, failed int
	var reclaimed int64
	for _, group := range result.Duplicates {
		_, remove := match.SelectKeeper(group, strategy)
		for _, rec := range remove {
			var dest string
			var err error
			if moveTo != "" {
				dest, err = fileutil.MoveFile(rec.Path, moveTo)
			} else {
				dest, err = fileutil.MoveToTrash(rec.Path)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to process %s: %v\n", rec.Path, err)
				failed++
				continue
			}
			logger.Debug("moved duplicate", "from", rec.Path, "to", dest)
			processed++
			reclaimed += rec.Size
		}
	}

	fmt.Println()
	if moveTo != "" {
		fmt.Printf("Moved %d files to %s\n", processed, moveTo)
	} else {
		fmt.Printf("Moved %d files to trash\n", processed)
	}
	if failed > 0 {
		fmt.Printf("Failed: %d files\n", failed)
	}
	fmt.Printf("Space reclaimed: %s\n", formatSize(reclaimed))
	return nil
}
