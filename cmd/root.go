package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"dupfinder/internal/cache"
	"dupfinder/internal/config"
	"dupfinder/internal/finder"
	"dupfinder/internal/hash"
	"dupfinder/internal/logging"
	"dupfinder/internal/progress"
	"dupfinder/internal/scan"
)

var (
	cfgFile   string
	cfg       *config.Config
	logger    *log.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "dupfinder",
	Short: "Find duplicate and similarly named files",
	Long: `dupfinder is a CLI tool for finding duplicate files.

Files are grouped by size, then by content digest, so only files that could
be identical are ever read. Digests are cached in SQLite and reused while a
file's size and modification time stay the same. Files that are not exact
duplicates are compared by name to surface likely versions of the same thing.

Example usage:
  dupfinder scan ~/Downloads ~/Videos   # Report duplicates under both folders
  dupfinder scan . --format json -o out.json
  dupfinder clean ~/Downloads --dry-run # Preview which copies would be removed
  dupfinder cache stats                 # Inspect the digest cache`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

// Execute runs the root command. Interrupts cancel the running scan.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: "+config.Dir()+"/config.yaml)")
	rootCmd.PersistentFlags().String("cache", config.DefaultCachePath(), "Path to the SQLite digest cache")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Do not read or write the digest cache")
	rootCmd.PersistentFlags().Bool("strict-cache", false, "Fail instead of falling back to memory when the cache is unusable")
	rootCmd.PersistentFlags().String("hash", config.DefaultAlgorithm, "Digest algorithm (blake2b, sha256, xxhash)")
	rootCmd.PersistentFlags().IntP("workers", "w", 0, "Number of files hashed in parallel (0 = one per CPU)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file instead of stderr")
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"cache":        "cache.path",
	"strict-cache": "cache.strict",
	"hash":         "hash.algorithm",
	"workers":      "workers",
	"log-level":    "logging.level",
	"log-file":     "logging.path",
	"threshold":    "threshold",
	"recursive":    "recursive",
	"ext":          "extensions",
	"cloud":        "cloud",
}

// setup loads configuration and builds the root logger.
func setup(cmd *cobra.Command, _ []string) error {
	v := config.New()
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}

	c, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		c.Cache.Enabled = false
	}
	cfg = c

	logger, logCloser, err = logging.New(logging.Config{Level: cfg.Logging.Level, Path: cfg.Logging.Path})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	logger.Debug("configuration loaded", "file", v.ConfigFileUsed(), "threshold", cfg.Threshold)
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var errs []error
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			errs = append(errs, v.BindPFlag(key, f))
		}
	}
	return errors.Join(errs...)
}

// openCache opens the configured digest cache. A recovered store is
// reported but not fatal.
func openCache() (cache.HashCache, error) {
	hc, err := cache.Open(cfg.CachePath(),
		cache.WithStrict(cfg.Cache.Strict),
		cache.WithAlgorithm(cfg.Hash.Algorithm),
		cache.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	if sc, ok := hc.(*cache.SQLiteCache); ok {
		if err := sc.Recovered(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	return hc, nil
}

// sqliteCache opens the persistent cache for maintenance commands.
func sqliteCache() (*cache.SQLiteCache, error) {
	if cfg.CachePath() == "" {
		return nil, errors.New("the digest cache is disabled")
	}
	hc, err := cache.Open(cfg.CachePath(),
		cache.WithStrict(true),
		cache.WithAlgorithm(cfg.Hash.Algorithm),
		cache.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return hc.(*cache.SQLiteCache), nil
}

// newFinder builds a Finder from the loaded configuration.
func newFinder(hc cache.HashCache, showProgress bool) (*finder.Finder, error) {
	alg, err := hash.ParseAlgorithm(cfg.Hash.Algorithm)
	if err != nil {
		return nil, err
	}
	hasher, err := hash.NewHasher(hash.WithAlgorithm(alg), hash.WithChunkSize(cfg.Hash.ChunkSize))
	if err != nil {
		return nil, err
	}
	cloud, err := scan.ParseCloudFilter(cfg.Cloud)
	if err != nil {
		return nil, err
	}

	var reporter progress.Reporter = progress.Nop{}
	if showProgress {
		reporter = progress.NewLine(os.Stderr)
	}

	return finder.New(cfg.Threshold,
		finder.WithRecursive(cfg.Recursive),
		finder.WithExtensions(cfg.Extensions...),
		finder.WithCloudFilter(cloud),
		finder.WithWorkers(cfg.Workers),
		finder.WithSeriesRatio(cfg.SeriesRatio),
		finder.WithCache(hc),
		finder.WithHashFunc(hasher.Func()),
		finder.WithProgress(reporter),
		finder.WithLogger(logger),
	)
}
