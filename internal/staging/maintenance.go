package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"ferry/internal/fileutil"
	"ferry/internal/logging"
)

// CleanStaleResult contains the outcome of a stale directory cleanup operation.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// DirInfo describes one unit directory in a stage root.
type DirInfo struct {
	Stage   string
	Unit    string
	Path    string
	ModTime time.Time
	Files   int
	Size    int64
}

// ListDirectories returns every unit directory under the layout, ordered by
// stage then unit.
func ListDirectories(layout Layout) ([]DirInfo, error) {
	var dirs []DirInfo
	for _, stageName := range layout.Stages() {
		root := layout.StageRoot(stageName)
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			path := filepath.Join(root, entry.Name())
			files, size, _ := fileutil.DirStats(path)
			dirs = append(dirs, DirInfo{
				Stage:   stageName,
				Unit:    entry.Name(),
				Path:    path,
				ModTime: info.ModTime(),
				Files:   files,
				Size:    size,
			})
		}
	}
	sort.SliceStable(dirs, func(i, j int) bool {
		if dirs[i].Stage != dirs[j].Stage {
			return stageOrder(layout, dirs[i].Stage) < stageOrder(layout, dirs[j].Stage)
		}
		return dirs[i].Unit < dirs[j].Unit
	})
	return dirs, nil
}

func stageOrder(layout Layout, name string) int {
	for i, candidate := range layout.Stages() {
		if candidate == name {
			return i
		}
	}
	return len(layout.Stages())
}

// CleanStale removes unit directories whose modification time is older than maxAge.
func CleanStale(ctx context.Context, layout Layout, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}
	dirs, err := ListDirectories(layout)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: layout.Root, Error: err})
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, dir := range dirs {
		if ctx.Err() != nil {
			break
		}
		if !dir.ModTime.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir.Path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dir.Path, Error: err})
			logging.WarnWithContext(logger, "failed to remove stale staging directory", "staging_cleanup_failed",
				logging.String("path", dir.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dir.Path)
		if logger != nil {
			logger.Info("removed stale staging directory",
				logging.String("path", dir.Path),
				logging.Duration("age", time.Since(dir.ModTime).Round(time.Second)),
				logging.String(logging.FieldEventType, "staging_cleanup"),
			)
		}
	}
	return result
}
