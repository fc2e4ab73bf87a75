// Package finder runs a complete duplicate scan: walk the roots, group
// identical content, then cluster the remaining files by name.
package finder

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"dupfinder/internal/cache"
	"dupfinder/internal/hash"
	"dupfinder/internal/logging"
	"dupfinder/internal/match"
	"dupfinder/internal/models"
	"dupfinder/internal/progress"
	"dupfinder/internal/scan"
)

// Finder wires the scanner, detector and name matcher together.
type Finder struct {
	threshold   float64
	seriesRatio float64
	recursive   bool
	extensions  []string
	cloud       scan.CloudFilter
	workers     int
	cache       cache.HashCache
	hashFn      hash.Func
	locality    scan.Locality
	exclusions  []match.Exclusion
	progress    progress.Reporter
	logger      *log.Logger
}

// Option configures a Finder.
type Option func(*Finder)

// WithRecursive controls whether subdirectories are walked.
func WithRecursive(recursive bool) Option {
	return func(f *Finder) { f.recursive = recursive }
}

// WithExtensions limits the scan to the given extensions.
func WithExtensions(exts ...string) Option {
	return func(f *Finder) { f.extensions = exts }
}

// WithCloudFilter selects local, cloud-only or all files.
func WithCloudFilter(c scan.CloudFilter) Option {
	return func(f *Finder) { f.cloud = c }
}

// WithWorkers sets the hashing parallelism.
func WithWorkers(n int) Option {
	return func(f *Finder) { f.workers = n }
}

// WithSeriesRatio overrides match.DefaultSeriesRatio.
func WithSeriesRatio(r float64) Option {
	return func(f *Finder) { f.seriesRatio = r }
}

// WithCache sets the digest cache.
func WithCache(c cache.HashCache) Option {
	return func(f *Finder) { f.cache = c }
}

// WithHashFunc sets the digest function.
func WithHashFunc(fn hash.Func) Option {
	return func(f *Finder) { f.hashFn = fn }
}

// WithLocality sets the cloud placeholder check.
func WithLocality(l scan.Locality) Option {
	return func(f *Finder) { f.locality = l }
}

// WithExclusions replaces the default name exclusion rules.
func WithExclusions(rules ...match.Exclusion) Option {
	return func(f *Finder) { f.exclusions = rules }
}

// WithProgress reports scanning and hashing progress.
func WithProgress(r progress.Reporter) Option {
	return func(f *Finder) { f.progress = r }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(f *Finder) { f.logger = l }
}

// New creates a Finder. Invalid thresholds are rejected here, before any
// file is touched.
func New(threshold float64, opts ...Option) (*Finder, error) {
	f := &Finder{
		threshold:   threshold,
		seriesRatio: match.DefaultSeriesRatio,
		recursive:   true,
		cloud:       scan.CloudAll,
		progress:    progress.Nop{},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.Component(f.logger, "finder")

	// Both constructors validate their ranges.
	if _, err := f.nameMatcher(); err != nil {
		return nil, err
	}
	if _, err := f.detector(nil); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Finder) nameMatcher() (*match.NameMatcher, error) {
	var opts []match.NameOption
	if f.exclusions != nil {
		opts = append(opts, match.WithExclusions(f.exclusions...))
	}
	return match.NewNameMatcher(f.threshold, opts...)
}

func (f *Finder) detector(meta *models.ScanMetadata) (*match.Detector, error) {
	opts := []match.DetectorOption{
		match.WithCache(f.cache),
		match.WithHashFunc(f.hashFn),
		match.WithWorkers(f.workers),
		match.WithSeriesRatio(f.seriesRatio),
		match.WithDetectorProgress(f.progress),
		match.WithDetectorLogger(f.logger),
	}
	if meta != nil {
		opts = append(opts, match.WithDetectorErrorSink(meta))
	}
	return match.NewDetector(opts...)
}

func (f *Finder) scanner(meta *models.ScanMetadata) *scan.Scanner {
	opts := []scan.Option{
		scan.WithRecursive(f.recursive),
		scan.WithExtensions(f.extensions...),
		scan.WithCloudFilter(f.cloud),
		scan.WithProgress(f.progress),
		scan.WithErrorSink(meta),
		scan.WithLogger(f.logger),
	}
	if f.locality != nil {
		opts = append(opts, scan.WithLocality(f.locality))
	}
	return scan.NewScanner(opts...)
}

// Run scans roots and returns the sorted result. Per-file problems end up in
// the result metadata; root errors, cancellation and a fatal cache error are
// returned.
func (f *Finder) Run(ctx context.Context, roots []string) (*models.ScanResult, error) {
	meta := models.NewScanMetadata(roots)

	files, err := f.scanner(meta).ScanRoots(ctx, roots)
	if err != nil {
		return nil, err
	}
	meta.FilesFound = len(files)
	f.logger.Info("scan complete", "roots", len(roots), "files", len(files))

	det, err := f.detector(meta)
	if err != nil {
		return nil, err
	}
	detected, err := det.FindDuplicates(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("detect duplicates: %w", err)
	}
	meta.AddHashed(detected.Hashed, detected.HashDuration)
	meta.AddCacheHits(detected.CacheHits)
	meta.SeriesGroups = detected.Series

	grouped := detected.InGroup()
	rest := make([]*models.FileRecord, 0, len(files)-len(grouped))
	for _, rec := range files {
		if _, ok := grouped[rec.Path]; !ok {
			rest = append(rest, rec)
		}
	}

	nm, err := f.nameMatcher()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	potential := nm.FindGroups(rest)
	f.logger.Debug("name matching complete",
		"candidates", len(rest), "threshold", nm.Threshold(),
		"groups", len(potential), "took", time.Since(start))

	meta.Finish()
	result := &models.ScanResult{
		Files:            files,
		Duplicates:       detected.Groups,
		PotentialMatches: potential,
		Metadata:         meta,
	}
	result.SortDuplicates()
	result.SortPotentialMatches()

	f.logger.Info("detection complete",
		"duplicate_groups", len(result.Duplicates),
		"potential_groups", len(result.PotentialMatches),
		"errors", meta.ErrorCount(),
		"duration", meta.Duration())
	return result, nil
}
