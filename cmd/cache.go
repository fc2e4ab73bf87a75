package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyJSON  bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the digest cache",
	Long: `Commands for managing the SQLite digest cache.

The cache maps (path, size, modification time) to a content digest so that
unchanged files are not read again. It also keeps a history of past scans.
The default location is ` + "`$XDG_CACHE_HOME/dupfinder/hashes.db`" + `.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := sqliteCache()
		if err != nil {
			return err
		}
		defer sc.Close()

		st, err := sc.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("Cache location: %s\n", st.Path)
		fmt.Printf("Cache size:     %s\n", formatSize(st.FileSize))
		fmt.Printf("Entries:        %d\n", st.Entries)
		fmt.Printf("Data covered:   %s\n", formatSize(st.TotalSize))
		fmt.Printf("Algorithm:      %s\n", st.Algorithm)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached digests",
	Long:  `Removes every cached digest. Scan history is kept. The next scan hashes every candidate again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := sqliteCache()
		if err != nil {
			return err
		}
		defer sc.Close()

		n, err := sc.Clear()
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d cached digests.\n", n)
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop digests of missing or changed files",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := sqliteCache()
		if err != nil {
			return err
		}
		defer sc.Close()

		n, err := sc.Prune(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d stale entries.\n", n)
		return nil
	},
}

var cacheHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List past scans",
	Long: `Display previous scans, newest first.

Example:
  dupfinder cache history          # Show the last 10 scans (default)
  dupfinder cache history -n 0     # Show all scans
  dupfinder cache history --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := sqliteCache()
		if err != nil {
			return err
		}
		defer sc.Close()

		records, err := sc.History(historyLimit)
		if err != nil {
			return err
		}

		if historyJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(records)
		}

		if len(records) == 0 {
			fmt.Println("No scans recorded.")
			fmt.Println("Run 'dupfinder scan <folder>' to scan for duplicates.")
			return nil
		}
		for _, r := range records {
			fmt.Printf("#%d  %s  (%s)\n", r.ID, r.ScannedAt.Format("2006-01-02 15:04"), formatAge(r.ScannedAt))
			fmt.Printf("    roots:      %s\n", strings.Join(r.Roots, ", "))
			fmt.Printf("    files:      %d in %s\n", r.TotalFiles, r.Duration.Round(time.Millisecond))
			fmt.Printf("    duplicates: %d groups, %s wasted\n", r.DuplicateGroups, formatSize(r.WastedSpace))
			fmt.Printf("    potential:  %d groups\n", r.PotentialGroups)
			if r.Errors > 0 {
				fmt.Printf("    errors:     %d\n", r.Errors)
			}
		}
		return nil
	},
}

func init() {
	cacheHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of scans to show (0 = all)")
	cacheHistoryCmd.Flags().BoolVar(&historyJSON, "json", false, "Output in JSON format")

	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cachePruneCmd, cacheHistoryCmd)
	rootCmd.AddCommand(cacheCmd)
}
