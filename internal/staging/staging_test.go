package staging_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ferry/internal/logging"
	"ferry/internal/staging"
)

func populate(t *testing.T, layout staging.Layout, key string) {
	t.Helper()
	for _, dir := range layout.UnitDirs(key) {
		if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "nested", "file.bin"), []byte("data"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLayoutPaths(t *testing.T) {
	layout := staging.Layout{Root: "/data/tmp"}
	if got := layout.FetchDir("66065"); got != "/data/tmp/fetch/66065" {
		t.Fatalf("unexpected fetch dir %q", got)
	}
	if got := layout.TransformDir("../etc"); filepath.Dir(got) != "/data/tmp/transform" {
		t.Fatalf("unit key escaped its stage root: %q", got)
	}
	if len(layout.UnitDirs("1")) != 3 {
		t.Fatal("expected three unit directories")
	}
}

func TestFinalizeRemovesAllUnitDirectories(t *testing.T) {
	layout := staging.Layout{Root: t.TempDir()}
	if err := layout.Ensure(); err != nil {
		t.Fatal(err)
	}
	populate(t, layout, "49521")
	populate(t, layout, "49522")

	result := staging.Finalize(context.Background(), "49521", layout, logging.NewNop())
	if !result.OK || len(result.Removed) != 3 || len(result.Errors) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	for _, dir := range layout.UnitDirs("49521") {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed", dir)
		}
	}
	for _, dir := range layout.UnitDirs("49522") {
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("other unit must be untouched: %v", err)
		}
	}
}

func TestFinalizeToleratesMissingDirectories(t *testing.T) {
	layout := staging.Layout{Root: t.TempDir()}
	result := staging.Finalize(context.Background(), "49521", layout, logging.NewNop())
	if !result.OK {
		t.Fatalf("missing directories should count as removed: %+v", result)
	}
}

func TestFinalizeReportsPartialFailure(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	layout := staging.Layout{Root: t.TempDir()}
	populate(t, layout, "49521")
	locked := layout.StageRoot("unpack")
	if err := os.Chmod(locked, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	result := staging.Finalize(context.Background(), "49521", layout, logging.NewNop())
	if result.OK {
		t.Fatal("expected partial failure")
	}
	if len(result.Errors) != 1 || len(result.Removed) != 2 {
		t.Fatalf("each removal must be attempted independently: %+v", result)
	}
}

func TestListDirectoriesAndCleanStale(t *testing.T) {
	layout := staging.Layout{Root: t.TempDir()}
	populate(t, layout, "1")
	populate(t, layout, "2")

	dirs, err := staging.ListDirectories(layout)
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(dirs) != 6 {
		t.Fatalf("expected 6 directories, got %d", len(dirs))
	}
	if dirs[0].Stage != "fetch" || dirs[0].Unit != "1" || dirs[0].Files != 1 || dirs[0].Size != 4 {
		t.Fatalf("unexpected first entry %+v", dirs[0])
	}

	old := time.Now().Add(-72 * time.Hour)
	for _, dir := range layout.UnitDirs("1") {
		if err := os.Chtimes(dir, old, old); err != nil {
			t.Fatal(err)
		}
	}
	result := staging.CleanStale(context.Background(), layout, 24*time.Hour, logging.NewNop())
	if len(result.Removed) != 3 || len(result.Errors) != 0 {
		t.Fatalf("unexpected clean result %+v", result)
	}
	dirs, _ = staging.ListDirectories(layout)
	if len(dirs) != 3 {
		t.Fatalf("expected unit 2 to remain, got %+v", dirs)
	}
}
