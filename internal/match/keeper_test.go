package match

import (
	"testing"
	"time"

	"dupfinder/internal/models"
)

func group(t *testing.T, files ...*models.FileRecord) *models.DuplicateGroup {
	t.Helper()
	g, err := models.NewDuplicateGroup("digest", files)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestParseKeepStrategy(t *testing.T) {
	for in, want := range map[string]KeepStrategy{"": KeepShortest, "OLDEST": KeepOldest, "newest": KeepNewest} {
		if got, err := ParseKeepStrategy(in); err != nil || got != want {
			t.Errorf("ParseKeepStrategy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseKeepStrategy("biggest"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestSelectKeeper_Strategies(t *testing.T) {
	old := models.NewFileRecord("/data/archive/2019/movie.mp4", 10, time.Unix(100, 0))
	short := models.NewFileRecord("/data/movie.mp4", 10, time.Unix(200, 0))
	fresh := models.NewFileRecord("/data/downloads/movie.mp4", 10, time.Unix(300, 0))
	g := group(t, old, short, fresh)

	tests := []struct {
		strategy KeepStrategy
		want     *models.FileRecord
	}{
		{KeepShortest, short},
		{KeepOldest, old},
		{KeepNewest, fresh},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			keep, remove := SelectKeeper(g, tt.strategy)
			if keep != tt.want {
				t.Errorf("keep = %s, want %s", keep.Path, tt.want.Path)
			}
			if len(remove) != 2 {
				t.Errorf("remove = %d files, want 2", len(remove))
			}
			for _, r := range remove {
				if r == keep {
					t.Error("keeper listed for removal")
				}
			}
		})
	}
}

func TestSelectKeeper_NeverKeepsNumberedCopy(t *testing.T) {
	original := models.NewFileRecord("/home/user/some/deep/folder/report.pdf", 10, time.Unix(300, 0))
	copy1 := models.NewFileRecord("/home/user/report (1).pdf", 10, time.Unix(100, 0))
	g := group(t, original, copy1)

	for _, s := range []KeepStrategy{KeepShortest, KeepOldest, KeepNewest} {
		if keep, _ := SelectKeeper(g, s); keep != original {
			t.Errorf("%s kept %s, want the un-numbered original", s, keep.Path)
		}
	}
}

func TestSelectKeeper_LowestCopyNumber(t *testing.T) {
	c3 := models.NewFileRecord("/d/report (3).pdf", 10, time.Unix(100, 0))
	c2 := models.NewFileRecord("/d/report (2).pdf", 10, time.Unix(200, 0))
	g := group(t, c3, c2)

	if keep, _ := SelectKeeper(g, KeepOldest); keep != c2 {
		t.Errorf("keep = %s, want report (2).pdf", keep.Path)
	}
}

func TestSelectKeeper_ZeroCopyLosesToOriginal(t *testing.T) {
	c0 := models.NewFileRecord("/d/a (0).pdf", 10, time.Unix(100, 0))
	orig := models.NewFileRecord("/d/deeper/path/a.pdf", 10, time.Unix(200, 0))
	g := group(t, c0, orig)

	if keep, _ := SelectKeeper(g, KeepShortest); keep != orig {
		t.Errorf("keep = %s, want %s", keep.Path, orig.Path)
	}
}

func TestSelectKeeper_TiesKeepPathOrder(t *testing.T) {
	mtime := time.Unix(100, 0)
	b := models.NewFileRecord("/d/b/file.bin", 10, mtime)
	a := models.NewFileRecord("/d/a/file.bin", 10, mtime)
	c := models.NewFileRecord("/d/c/file.bin", 10, mtime)
	g := group(t, b, c, a)

	for _, s := range []KeepStrategy{KeepShortest, KeepOldest, KeepNewest} {
		keep, remove := SelectKeeper(g, s)
		if keep != a {
			t.Errorf("%s kept %s, want %s", s, keep.Path, a.Path)
		}
		if len(remove) != 2 || remove[0] != b || remove[1] != c {
			t.Errorf("%s remove = %v, want [b c] in path order", s, remove)
		}
	}
}
