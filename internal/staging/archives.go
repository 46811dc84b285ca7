package staging

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// FindArchives returns the files under dir whose base name matches pattern,
// sorted by path. Download leftovers ending in ".part" are ignored.
func FindArchives(dir, pattern string) ([]string, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, err
	}
	var matches []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, ".part") {
			return nil
		}
		if ok, _ := filepath.Match(pattern, name); ok {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// ArchiveStem returns the archive's base name without its extension.
func ArchiveStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
