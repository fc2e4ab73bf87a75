package match

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"dupfinder/internal/cache"
	"dupfinder/internal/hash"
	"dupfinder/internal/logging"
	"dupfinder/internal/models"
	"dupfinder/internal/progress"
	"dupfinder/internal/sink"
)

// DefaultSeriesRatio is the share of name pairs in a size-group that must
// look like a numbered series for the group to be flagged.
const DefaultSeriesRatio = 0.6

// Detector finds files with identical content: size first, then digest.
type Detector struct {
	cache       cache.HashCache
	hashFn      hash.Func
	workers     int
	seriesRatio float64
	progress    progress.Reporter
	sink        sink.ErrorSink
	logger      *log.Logger
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithCache sets the digest cache. The default caches nothing.
func WithCache(c cache.HashCache) DetectorOption {
	return func(d *Detector) {
		if c != nil {
			d.cache = c
		}
	}
}

// WithHashFunc sets the function used to digest files.
func WithHashFunc(fn hash.Func) DetectorOption {
	return func(d *Detector) {
		if fn != nil {
			d.hashFn = fn
		}
	}
}

// WithWorkers sets the number of files hashed in parallel
func WithWorkers(n int) DetectorOption {
	return func(d *Detector) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithSeriesRatio overrides DefaultSeriesRatio.
func WithSeriesRatio(r float64) DetectorOption {
	return func(d *Detector) {
		d.seriesRatio = r
	}
}

// WithDetectorProgress sets the progress reporter for hashing.
func WithDetectorProgress(r progress.Reporter) DetectorOption {
	return func(d *Detector) {
		if r != nil {
			d.progress = r
		}
	}
}

// WithDetectorErrorSink sets where unreadable and skipped files are recorded.
func WithDetectorErrorSink(es sink.ErrorSink) DetectorOption {
	return func(d *Detector) {
		if es != nil {
			d.sink = es
		}
	}
}

// WithDetectorLogger sets the logger.
func WithDetectorLogger(l *log.Logger) DetectorOption {
	return func(d *Detector) {
		d.logger = l
	}
}

// NewDetector creates a Detector. Without WithHashFunc it hashes with blake2b.
func NewDetector(opts ...DetectorOption) (*Detector, error) {
	d := &Detector{
		cache:       cache.NopCache{},
		workers:     runtime.NumCPU(),
		seriesRatio: DefaultSeriesRatio,
		progress:    progress.Nop{},
		sink:        sink.Nop{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := checkUnit(d.seriesRatio); err != nil {
		return nil, fmt.Errorf("series ratio: %w", err)
	}
	if d.hashFn == nil {
		h, err := hash.NewHasher()
		if err != nil {
			return nil, err
		}
		d.hashFn = h.HashFile
	}
	d.logger = logging.Component(d.logger, "detect")
	if _, ok := d.progress.(*progress.Safe); !ok {
		d.progress = progress.NewSafe(d.progress, d.logger)
	}
	return d, nil
}

// DetectResult is the outcome of FindDuplicates.
type DetectResult struct {
	Groups       []*models.DuplicateGroup
	Series       []models.SeriesGroup
	Hashed       int
	CacheHits    int
	Remote       int
	Unreadable   int
	HashDuration time.Duration
}

// InGroup returns the paths of every file placed in a duplicate group.
func (r *DetectResult) InGroup() map[string]struct{} {
	paths := make(map[string]struct{})
	for _, g := range r.Groups {
		for _, f := range g.Files {
			paths[f.Path] = struct{}{}
		}
	}
	return paths
}

// FindDuplicates groups files with identical size and digest. Size-groups are
// processed smallest first, and cancellation is honoured between them.
// Unreadable files are recorded and left out; only a fatal cache error aborts.
func (d *Detector) FindDuplicates(ctx context.Context, files []*models.FileRecord) (*DetectResult, error) {
	bySize := make(map[int64][]*models.FileRecord)
	for _, f := range files {
		if f.Size > 0 {
			bySize[f.Size] = append(bySize[f.Size], f)
		}
	}

	var sizes []int64
	total := 0
	for size, group := range bySize {
		if len(group) < 2 {
			continue
		}
		sizes = append(sizes, size)
		total += len(group)
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] < sizes[j] })

	res := &DetectResult{}
	run := &detectRun{Detector: d, total: total}
	d.progress.Start(total, "hashing")
	defer d.progress.Finish()

	for _, size := range sizes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		group := bySize[size]
		sort.Slice(group, func(i, j int) bool { return group[i].Path < group[j].Path })

		series, ratio := d.seriesShare(group)
		if series {
			sg := models.SeriesGroup{Size: size, PairRatio: ratio}
			for _, f := range group {
				sg.Paths = append(sg.Paths, f.Path)
			}
			res.Series = append(res.Series, sg)
			d.logger.Debug("size-group looks like a series", "size", size, "files", len(group), "ratio", ratio)
		}

		groups, err := run.hashSizeGroup(group)
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			g.LikelySeries = series
		}
		res.Groups = append(res.Groups, groups...)
	}

	res.Hashed = int(run.hashed.Load())
	res.CacheHits = int(run.hits.Load())
	res.Remote = int(run.remote.Load())
	res.Unreadable = int(run.unreadable.Load())
	res.HashDuration = time.Duration(run.hashNanos.Load())
	return res, nil
}

// seriesShare reports whether the share of series-like name pairs in group
// reaches the configured ratio.
func (d *Detector) seriesShare(group []*models.FileRecord) (bool, float64) {
	infos := make([]seriesInfo, len(group))
	for i, f := range group {
		infos[i] = parseSeries(Normalize(f.Name()))
	}

	pairs, hits := 0, 0
	for i := range infos {
		for j := i + 1; j < len(infos); j++ {
			pairs++
			if seriesPair(infos[i], infos[j]) {
				hits++
			}
		}
	}
	if pairs == 0 {
		return false, 0
	}
	ratio := float64(hits) / float64(pairs)
	return hits > 0 && ratio >= d.seriesRatio, ratio
}

// detectRun holds the counters of one FindDuplicates call.
type detectRun struct {
	*Detector
	total      int
	done       atomic.Int64
	hashed     atomic.Int64
	hits       atomic.Int64
	remote     atomic.Int64
	unreadable atomic.Int64
	hashNanos  atomic.Int64
}

// hashSizeGroup digests the local members of one size-group and returns the
// digest subgroups with two or more members.
func (r *detectRun) hashSizeGroup(group []*models.FileRecord) ([]*models.DuplicateGroup, error) {
	var local []*models.FileRecord
	for _, f := range group {
		if f.Remote {
			r.remote.Add(1)
			r.sink.RecordSkip(f.Path, models.SkipRemote)
			r.tick(f.Path)
			continue
		}
		local = append(local, f)
	}
	if len(local) < 2 {
		for _, f := range local {
			r.tick(f.Path)
		}
		return nil, nil
	}

	digests := make([]string, len(local))
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, f := range local {
		g.Go(func() error {
			defer r.tick(f.Path)
			digest, err := f.Digest(func() (string, error) { return r.digest(f) })
			if err != nil {
				if errors.Is(err, cache.ErrCacheFatal) {
					return err
				}
				r.unreadable.Add(1)
				r.sink.RecordError(f.Path, models.KindFileUnreadable, err)
				r.logger.Debug("skipping unreadable file", "path", f.Path, "err", err)
				return nil
			}
			digests[i] = digest
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byDigest := make(map[string][]*models.FileRecord)
	for i, f := range local {
		if digests[i] != "" {
			byDigest[digests[i]] = append(byDigest[digests[i]], f)
		}
	}

	var groups []*models.DuplicateGroup
	for digest, members := range byDigest {
		if len(members) < 2 {
			continue
		}
		dg, err := models.NewDuplicateGroup(digest, members)
		if err != nil {
			return nil, err
		}
		groups = append(groups, dg)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Digest < groups[j].Digest })
	return groups, nil
}

// digest consults the cache, then hashes and writes back on a miss.
func (r *detectRun) digest(f *models.FileRecord) (string, error) {
	digest, ok, err := r.cache.Get(f.Path, f.Size, f.ModTime)
	if err != nil {
		r.logger.Debug("cache lookup failed, rehashing", "path", f.Path, "err", err)
	}
	if ok && err == nil {
		r.hits.Add(1)
		return digest, nil
	}

	start := time.Now()
	digest, err = r.hashFn(f.Path)
	r.hashNanos.Add(int64(time.Since(start)))
	if err != nil {
		return "", err
	}
	r.hashed.Add(1)

	if err := r.cache.Put(f.Path, f.Size, f.ModTime, digest); err != nil {
		if errors.Is(err, cache.ErrCacheFatal) {
			return "", err
		}
		r.logger.Warn("failed to cache digest", "path", f.Path, "err", err)
	}
	return digest, nil
}

func (r *detectRun) tick(path string) {
	r.progress.Update(int(r.done.Add(1)), path)
}
