package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/charmbracelet/log"

	"dupfinder/internal/fileutil"
	"dupfinder/internal/logging"
	"dupfinder/internal/models"
	"dupfinder/internal/progress"
	"dupfinder/internal/sink"
)

var (
	// ErrRootNotFound is returned when a scan root is missing or not a directory.
	ErrRootNotFound = errors.New("scan root not found")

	// ErrRootPermissionDenied is returned when a scan root cannot be read.
	ErrRootPermissionDenied = errors.New("scan root permission denied")
)

// Locality decides whether a file is a remote placeholder.
type Locality interface {
	Remote(path string, info fs.FileInfo) bool
}

// LocalityFunc adapts a function to Locality.
type LocalityFunc func(path string, info fs.FileInfo) bool

func (f LocalityFunc) Remote(path string, info fs.FileInfo) bool {
	return f(path, info)
}

// CloudFilter selects files by locality.
type CloudFilter string

const (
	CloudAll       CloudFilter = "all"        // local and remote files
	CloudLocalOnly CloudFilter = "local"      // drop remote placeholders
	CloudOnly      CloudFilter = "cloud-only" // keep only remote placeholders
)

// ParseCloudFilter resolves a filter name. Empty means CloudAll.
func ParseCloudFilter(s string) (CloudFilter, error) {
	switch f := CloudFilter(strings.ToLower(s)); f {
	case "":
		return CloudAll, nil
	case CloudAll, CloudLocalOnly, CloudOnly:
		return f, nil
	default:
		return "", fmt.Errorf("unknown cloud filter %q", s)
	}
}

// Scanner enumerates candidate files under a root.
type Scanner struct {
	recursive  bool
	extensions map[string]struct{}
	cloud      CloudFilter
	progress   progress.Reporter
	sink       sink.ErrorSink
	locality   Locality
	logger     *log.Logger
}

// Option configures a Scanner
type Option func(*Scanner)

// WithRecursive controls whether subdirectories are walked.
func WithRecursive(recursive bool) Option {
	return func(s *Scanner) {
		s.recursive = recursive
	}
}

// WithExtensions restricts the scan to the given extensions. Matching is
// case-insensitive and the leading dot is optional. No extensions means all files.
func WithExtensions(exts ...string) Option {
	return func(s *Scanner) {
		for _, e := range exts {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" {
				continue
			}
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			if s.extensions == nil {
				s.extensions = make(map[string]struct{})
			}
			s.extensions[e] = struct{}{}
		}
	}
}

// WithCloudFilter selects local, remote or all files.
func WithCloudFilter(f CloudFilter) Option {
	return func(s *Scanner) {
		s.cloud = f
	}
}

// WithProgress sets the progress reporter.
func WithProgress(r progress.Reporter) Option {
	return func(s *Scanner) {
		if r != nil {
			s.progress = r
		}
	}
}

// WithErrorSink sets where unreadable files are recorded.
func WithErrorSink(es sink.ErrorSink) Option {
	return func(s *Scanner) {
		if es != nil {
			s.sink = es
		}
	}
}

// WithLocality sets the remote-file detector.
func WithLocality(l Locality) Option {
	return func(s *Scanner) {
		if l != nil {
			s.locality = l
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Scanner) {
		s.logger = l
	}
}

// NewScanner creates a recursive Scanner that accepts every extension.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		recursive: true,
		cloud:     CloudAll,
		progress:  progress.Nop{},
		sink:      sink.Nop{},
		locality:  LocalityFunc(fileutil.IsCloudOnly),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.Component(s.logger, "scan")
	if _, ok := s.progress.(*progress.Safe); !ok {
		s.progress = progress.NewSafe(s.progress, s.logger)
	}
	return s
}

// Scan validates root and returns the files beneath it in path order.
// Root problems are reported immediately; everything else happens as the
// sequence is consumed. Iterating again rescans.
func (s *Scanner) Scan(ctx context.Context, root string) (iter.Seq[*models.FileRecord], error) {
	root, err := checkRoot(root)
	if err != nil {
		return nil, err
	}

	return func(yield func(*models.FileRecord) bool) {
		paths := s.collect(ctx, root)
		s.logger.Debug("collected candidates", "root", root, "count", len(paths))

		s.progress.Start(len(paths), "scanning")
		defer s.progress.Finish()

		for i, path := range paths {
			if ctx.Err() != nil {
				return
			}
			s.progress.Update(i+1, path)

			rec := s.inspect(path)
			if rec == nil {
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}, nil
}

// ScanRoots scans each root and returns the union, sorted and without
// duplicate paths.
func (s *Scanner) ScanRoots(ctx context.Context, roots []string) ([]*models.FileRecord, error) {
	seen := make(map[string]struct{})
	var files []*models.FileRecord
	for _, root := range roots {
		seq, err := s.Scan(ctx, root)
		if err != nil {
			return nil, err
		}
		for rec := range seq {
			if _, dup := seen[rec.Path]; dup {
				continue
			}
			seen[rec.Path] = struct{}{}
			files = append(files, rec)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// checkRoot resolves root and verifies it is a readable directory.
func checkRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRootNotFound, root, err)
	}

	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("%w: %s", ErrRootNotFound, abs)
	case errors.Is(err, fs.ErrPermission):
		return "", fmt.Errorf("%w: %s", ErrRootPermissionDenied, abs)
	case err != nil:
		return "", fmt.Errorf("%w: %s: %v", ErrRootNotFound, abs, err)
	case !info.IsDir():
		return "", fmt.Errorf("%w: %s is not a directory", ErrRootNotFound, abs)
	}

	f, err := os.Open(abs)
	if err == nil {
		_, err = f.Readdirnames(1)
		f.Close()
	}
	if err != nil && !errors.Is(err, io.EOF) {
		if errors.Is(err, fs.ErrPermission) {
			return "", fmt.Errorf("%w: %s", ErrRootPermissionDenied, abs)
		}
		return "", fmt.Errorf("%w: %s: %v", ErrRootPermissionDenied, abs, err)
	}
	return abs, nil
}

// collect lists candidate paths under root, sorted.
func (s *Scanner) collect(ctx context.Context, root string) []string {
	var paths []string
	if !s.recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			s.sink.RecordError(root, models.KindWalkFailed, err)
		}
		for _, e := range entries {
			path := filepath.Join(root, e.Name())
			if !e.IsDir() && s.wantExtension(path) {
				paths = append(paths, path)
			}
		}
		sort.Strings(paths)
		return paths
	}

	var mu sync.Mutex
	conf := fastwalk.Config{
		Follow: false, // Don't follow symlinks.
	}
	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			s.sink.RecordError(path, models.KindWalkFailed, err)
			s.logger.Debug("walk error", "path", path, "err", err)
			return nil
		}
		if d.IsDir() || !s.wantExtension(path) {
			return nil
		}
		mu.Lock()
		paths = append(paths, path)
		mu.Unlock()
		return nil
	})
	if err != nil && ctx.Err() == nil {
		s.sink.RecordError(root, models.KindWalkFailed, err)
	}

	sort.Strings(paths)
	return paths
}

func (s *Scanner) wantExtension(path string) bool {
	if len(s.extensions) == 0 {
		return true
	}
	_, ok := s.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// inspect applies the per-file filters and returns nil for files that
// should not be reported.
func (s *Scanner) inspect(path string) *models.FileRecord {
	info, err := os.Lstat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.sink.RecordError(path, models.KindStatFailed, err)
		}
		return nil
	}
	if !info.Mode().IsRegular() || info.Size() <= 0 {
		return nil
	}

	remote := s.locality.Remote(path, info)
	switch {
	case s.cloud == CloudLocalOnly && remote:
		return nil
	case s.cloud == CloudOnly && !remote:
		return nil
	}

	// Opening a placeholder would download it.
	if !remote {
		f, err := os.Open(path)
		if err != nil {
			s.sink.RecordError(path, models.KindFileUnreadable, err)
			return nil
		}
		f.Close()
	}

	rec := models.NewFileRecord(path, info.Size(), info.ModTime())
	rec.Remote = remote
	return rec
}
