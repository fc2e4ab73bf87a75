package models

import (
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func rec(path string, size int64) *FileRecord {
	return NewFileRecord(path, size, time.Unix(1700000000, 0))
}

func TestNewFileRecord_AbsolutePath(t *testing.T) {
	f := NewFileRecord("some/dir/../file.txt", 10, time.Now())
	if !filepath.IsAbs(f.Path) {
		t.Errorf("Path = %q, want absolute", f.Path)
	}
	if filepath.Base(f.Path) != "file.txt" {
		t.Errorf("Base = %q, want file.txt", filepath.Base(f.Path))
	}
}

func TestFileRecord_Equal(t *testing.T) {
	a := rec("/x/a.mp4", 1)
	b := rec("/x/./a.mp4", 2)
	c := rec("/x/c.mp4", 1)

	if !a.Equal(b) {
		t.Error("records with same resolved path should be equal")
	}
	if a.Equal(c) {
		t.Error("records with different paths should not be equal")
	}
	var nilRec *FileRecord
	if a.Equal(nilRec) {
		t.Error("record should not equal nil")
	}
}

func TestFileRecord_Extension(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/x/a.MP4", ".mp4"},
		{"/x/a.tar.gz", ".gz"},
		{"/x/noext", ""},
	}
	for _, tt := range tests {
		if got := rec(tt.path, 1).Extension(); got != tt.want {
			t.Errorf("Extension(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestFileRecord_DigestComputedOnce(t *testing.T) {
	f := rec("/x/a.bin", 5)
	var calls int32
	compute := func() (string, error) {
		atomic.AddInt32(&calls, 1)
		return "abc", nil
	}

	if _, ok := f.CachedDigest(); ok {
		t.Error("CachedDigest should be empty before Digest is called")
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d, err := f.Digest(compute); err != nil || d != "abc" {
				t.Errorf("Digest = %q, %v", d, err)
			}
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}
	if d, ok := f.CachedDigest(); !ok || d != "abc" {
		t.Errorf("CachedDigest = %q, %v", d, ok)
	}
}

func TestFileRecord_DigestRemembersError(t *testing.T) {
	f := rec("/x/a.bin", 5)
	boom := errors.New("boom")
	calls := 0
	compute := func() (string, error) {
		calls++
		return "", boom
	}

	for i := 0; i < 2; i++ {
		if _, err := f.Digest(compute); !errors.Is(err, boom) {
			t.Errorf("Digest err = %v, want %v", err, boom)
		}
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}
	if _, ok := f.CachedDigest(); ok {
		t.Error("CachedDigest should not report a failed digest")
	}
}

func TestNewDuplicateGroup(t *testing.T) {
	b := rec("/x/b.mkv", 100)
	a := rec("/x/a.mp4", 100)

	g, err := NewDuplicateGroup("d1", []*FileRecord{b, a})
	if err != nil {
		t.Fatalf("NewDuplicateGroup failed: %v", err)
	}
	if g.Files[0] != a || g.Files[1] != b {
		t.Error("members should be sorted by path")
	}
	if g.Count() != 2 {
		t.Errorf("Count = %d, want 2", g.Count())
	}
	if g.TotalSize() != 200 {
		t.Errorf("TotalSize = %d, want 200", g.TotalSize())
	}
	if g.WastedSpace() != 100 {
		t.Errorf("WastedSpace = %d, want 100", g.WastedSpace())
	}
	if !g.Contains(a.Path) {
		t.Error("Contains should find member")
	}
}

func TestNewDuplicateGroup_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		digest string
		files  []*FileRecord
	}{
		{"singleton", "d", []*FileRecord{rec("/x/a", 1)}},
		{"empty", "d", nil},
		{"no digest", "", []*FileRecord{rec("/x/a", 1), rec("/x/b", 1)}},
		{"size mismatch", "d", []*FileRecord{rec("/x/a", 1), rec("/x/b", 2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDuplicateGroup(tt.digest, tt.files); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDuplicateGroup_Pickers(t *testing.T) {
	old := NewFileRecord("/x/backup/copy/a.mp4", 10, time.Unix(100, 0))
	mid := NewFileRecord("/x/a.mp4", 10, time.Unix(200, 0))
	fresh := NewFileRecord("/x/dl/a.mp4", 10, time.Unix(300, 0))

	g, err := NewDuplicateGroup("d", []*FileRecord{old, mid, fresh})
	if err != nil {
		t.Fatal(err)
	}
	if got := g.Oldest(); got != old {
		t.Errorf("Oldest = %s, want %s", got.Path, old.Path)
	}
	if got := g.Newest(); got != fresh {
		t.Errorf("Newest = %s, want %s", got.Path, fresh.Path)
	}
	if got := g.ShortestPath(); got != mid {
		t.Errorf("ShortestPath = %s, want %s", got.Path, mid.Path)
	}
}

func TestPotentialMatchGroup(t *testing.T) {
	if _, err := NewPotentialMatchGroup("x", 1.5); err == nil {
		t.Error("threshold above 1 should be rejected")
	}
	if _, err := NewPotentialMatchGroup("", 0.5); err == nil {
		t.Error("empty base name should be rejected")
	}

	g, err := NewPotentialMatchGroup("holiday video", 0.8)
	if err != nil {
		t.Fatal(err)
	}
	seed := rec("/x/holiday video.mp4", 100)
	near := rec("/x/holiday videos.mkv", 300)
	far := rec("/x/holiday vid.avi", 50)

	if err := g.Add(seed, 1.0); err != nil {
		t.Fatal(err)
	}
	if err := g.Add(near, 0.93); err != nil {
		t.Fatal(err)
	}
	if err := g.Add(far, 0.5); err == nil {
		t.Error("score below threshold should be rejected")
	}
	if err := g.Add(far, 0.85); err != nil {
		t.Fatal(err)
	}
	if err := g.Add(seed, 1.0); err != nil || g.Count() != 3 {
		t.Errorf("re-adding a member should be a no-op, Count = %d", g.Count())
	}

	if got := g.TotalSize(); got != 450 {
		t.Errorf("TotalSize = %d, want 450", got)
	}
	want := (1.0 + 0.93 + 0.85) / 3
	if got := g.AverageSimilarity(); got < want-1e-9 || got > want+1e-9 {
		t.Errorf("AverageSimilarity = %v, want %v", got, want)
	}
	exts := g.Extensions()
	if len(exts) != 3 || exts[0] != ".avi" || exts[2] != ".mp4" {
		t.Errorf("Extensions = %v", exts)
	}

	sorted := g.SortedBySimilarity()
	if sorted[0].File != seed || sorted[2].File != far {
		t.Errorf("SortedBySimilarity order wrong: %v", sorted)
	}

	removed, err := g.UpdateThreshold(0.9)
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 1 || removed[0] != far {
		t.Errorf("UpdateThreshold removed %v, want [%s]", removed, far.Path)
	}
	if g.Count() != 2 || g.Threshold != 0.9 {
		t.Errorf("after UpdateThreshold Count = %d, Threshold = %v", g.Count(), g.Threshold)
	}
}

func TestScanMetadata_Sink(t *testing.T) {
	m := NewScanMetadata([]string{"/x"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordError("/x/a", KindFileUnreadable, errors.New("denied"))
			m.RecordSkip("/x/b", SkipRemote)
		}()
	}
	wg.Wait()
	m.Finish()

	if m.ErrorCount() != 10 || m.SkipCount() != 10 {
		t.Errorf("ErrorCount = %d, SkipCount = %d, want 10 each", m.ErrorCount(), m.SkipCount())
	}
	if m.Errors[0].Message != "denied" || m.Errors[0].Kind != KindFileUnreadable {
		t.Errorf("unexpected error record %+v", m.Errors[0])
	}
	if m.Duration() < 0 {
		t.Error("Duration should not be negative")
	}
}

func TestScanResult_SummaryAndSort(t *testing.T) {
	a, b := rec("/x/a.mp4", 100), rec("/x/b.mkv", 100)
	c, d, e := rec("/x/c.bin", 10), rec("/x/d.bin", 10), rec("/x/e.bin", 10)
	u := rec("/x/u.mov", 200)

	small, _ := NewDuplicateGroup("aaa", []*FileRecord{c, d, e})
	big, _ := NewDuplicateGroup("zzz", []*FileRecord{a, b})

	r := &ScanResult{
		Files:      []*FileRecord{a, b, c, d, e, u},
		Duplicates: []*DuplicateGroup{small, big},
	}
	r.SortDuplicates()
	if r.Duplicates[0] != big {
		t.Error("group with most wasted space should sort first")
	}

	s := r.Summary()
	if s.TotalFiles != 6 || s.TotalSize != 430 {
		t.Errorf("TotalFiles = %d, TotalSize = %d", s.TotalFiles, s.TotalSize)
	}
	if s.DuplicateGroups != 2 || s.DuplicateFiles != 5 {
		t.Errorf("DuplicateGroups = %d, DuplicateFiles = %d", s.DuplicateGroups, s.DuplicateFiles)
	}
	if s.WastedSpace != 120 {
		t.Errorf("WastedSpace = %d, want 120", s.WastedSpace)
	}
	if s.UniqueFiles != 3 {
		t.Errorf("UniqueFiles = %d, want 3", s.UniqueFiles)
	}
}
