package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"dupfinder/internal/hash"
	"dupfinder/internal/logging"
	"dupfinder/internal/match"
	"dupfinder/internal/scan"
)

// HashConfig configures content hashing.
type HashConfig struct {
	Algorithm string `mapstructure:"algorithm"`
	ChunkSize int    `mapstructure:"chunk_size"`
}

// CacheConfig configures the persistent hash cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Strict  bool   `mapstructure:"strict"` // fail instead of falling back to memory
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

// Config represents the application configuration.
type Config struct {
	Threshold   float64       `mapstructure:"threshold"`
	Recursive   bool          `mapstructure:"recursive"`
	Extensions  []string      `mapstructure:"extensions"`
	Workers     int           `mapstructure:"workers"`
	SeriesRatio float64       `mapstructure:"series_ratio"`
	Cloud       string        `mapstructure:"cloud"`
	Hash        HashConfig    `mapstructure:"hash"`
	Cache       CacheConfig   `mapstructure:"cache"`
	Logging     LoggingConfig `mapstructure:"logging"`
}

// Dir returns $XDG_CONFIG_HOME/dupfinder.
func Dir() string {
	return filepath.Join(xdg.ConfigHome, "dupfinder")
}

// DefaultCachePath returns $XDG_CACHE_HOME/dupfinder/hashes.db.
func DefaultCachePath() string {
	return filepath.Join(xdg.CacheHome, "dupfinder", "hashes.db")
}

// New returns a viper instance with defaults and DUPFINDER_ environment
// overrides. Callers may bind flags to it before Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(Dir())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("threshold", DefaultThreshold)
	v.SetDefault("recursive", true)
	v.SetDefault("extensions", []string{})
	v.SetDefault("workers", 0) // 0 means one per CPU
	v.SetDefault("series_ratio", DefaultSeriesRatio)
	v.SetDefault("cloud", DefaultCloud)

	v.SetDefault("hash.algorithm", DefaultAlgorithm)
	v.SetDefault("hash.chunk_size", DefaultChunkSize)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", DefaultCachePath())
	v.SetDefault("cache.strict", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty logs to stderr

	return v
}

// Load reads the config file into v and decodes it. An explicit file must
// exist; the default location is optional.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is acceptable; we use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Extensions = splitList(cfg.Extensions)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitList accepts both YAML lists and comma-separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Threshold < 0 || c.Threshold > 1 {
		errs = append(errs, fmt.Errorf("threshold %v: %w", c.Threshold, match.ErrInvalidThreshold))
	}
	if c.SeriesRatio < 0 || c.SeriesRatio > 1 {
		errs = append(errs, fmt.Errorf("series_ratio %v: %w", c.SeriesRatio, match.ErrInvalidThreshold))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if _, err := hash.ParseAlgorithm(c.Hash.Algorithm); err != nil {
		errs = append(errs, err)
	}
	if c.Hash.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("hash.chunk_size must be positive, got %d", c.Hash.ChunkSize))
	}
	if _, err := scan.ParseCloudFilter(c.Cloud); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CachePath returns the cache location, or "" when caching is disabled.
func (c *Config) CachePath() string {
	if !c.Cache.Enabled {
		return ""
	}
	return c.Cache.Path
}
