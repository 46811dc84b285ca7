package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ferry/internal/stage"
)

// Layout maps unit keys to their per-stage working directories.
type Layout struct {
	Root string
}

// Stages returns the stage names that own a staging subdirectory.
func (Layout) Stages() []string {
	return []string{stage.Fetch, stage.Unpack, stage.Transform}
}

// StageRoot returns the directory holding every unit of stageName.
func (l Layout) StageRoot(stageName string) string {
	return filepath.Join(l.Root, stageName)
}

// UnitDir returns the working directory of key for stageName.
func (l Layout) UnitDir(stageName, key string) string {
	return filepath.Join(l.Root, stageName, sanitizeKey(key))
}

func (l Layout) FetchDir(key string) string { return l.UnitDir(stage.Fetch, key) }

func (l Layout) UnpackDir(key string) string { return l.UnitDir(stage.Unpack, key) }

func (l Layout) TransformDir(key string) string { return l.UnitDir(stage.Transform, key) }

// UnitDirs returns every staging directory belonging to key.
func (l Layout) UnitDirs(key string) []string {
	dirs := make([]string, 0, len(l.Stages()))
	for _, name := range l.Stages() {
		dirs = append(dirs, l.UnitDir(name, key))
	}
	return dirs
}

// Ensure creates the stage roots.
func (l Layout) Ensure() error {
	if strings.TrimSpace(l.Root) == "" {
		return fmt.Errorf("staging root is not configured")
	}
	for _, name := range l.Stages() {
		if err := os.MkdirAll(l.StageRoot(name), 0o755); err != nil {
			return fmt.Errorf("create staging directory: %w", err)
		}
	}
	return nil
}

// sanitizeKey keeps unit keys from escaping their stage root.
func sanitizeKey(key string) string {
	key = strings.TrimSpace(key)
	key = strings.NewReplacer("/", "_", "\\", "_").Replace(key)
	if key == "" || key == "." || key == ".." {
		return "_"
	}
	return key
}
