// Package config loads dupfinder settings from file, environment and flags.
package config

// Default configuration values.
const (
	// DefaultThreshold is the minimum name similarity for a potential match.
	DefaultThreshold = 0.8

	// DefaultSeriesRatio is the share of series-like name pairs that flags a size-group.
	DefaultSeriesRatio = 0.6

	// DefaultAlgorithm is the content digest.
	DefaultAlgorithm = "blake2b"

	// DefaultChunkSize is the hashing read size in bytes.
	DefaultChunkSize = 1 << 20

	// DefaultCloud includes local and remote files.
	DefaultCloud = "all"

	// EnvPrefix prefixes environment overrides, e.g. DUPFINDER_THRESHOLD.
	EnvPrefix = "DUPFINDER"
)
