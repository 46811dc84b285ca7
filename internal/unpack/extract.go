package unpack

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ferry/internal/fileutil"
	"ferry/internal/services"
	"ferry/internal/stage"
)

// ErrUnsafePath reports an archive entry that escapes the destination.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Extract unpacks the zip at archive into dest, replacing anything already
// there. Expected is the number of file entries in the archive; Actual is the
// number of regular files under dest afterwards.
func Extract(archive, dest string) (stage.Counts, error) {
	var counts stage.Counts

	reader, err := zip.OpenReader(archive)
	if err != nil {
		if reader != nil {
			_ = reader.Close()
		}
		return counts, services.Wrap(services.ErrFormat, stage.Unpack, "open archive", filepath.Base(archive), err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if _, err := safeTarget(dest, file.Name); err != nil {
			return counts, services.Wrap(services.ErrFormat, stage.Unpack, "inspect archive", filepath.Base(archive), err)
		}
		if file.Mode()&os.ModeSymlink != 0 {
			return counts, services.Wrap(services.ErrFormat, stage.Unpack, "inspect archive",
				fmt.Sprintf("%s: symlink entry %q not supported", filepath.Base(archive), file.Name), nil)
		}
		if !file.FileInfo().IsDir() {
			counts.Expected++
		}
	}

	if err := os.RemoveAll(dest); err != nil {
		return counts, services.Wrap(services.ErrFileSystem, stage.Unpack, "reset directory", dest, err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return counts, services.Wrap(services.ErrFileSystem, stage.Unpack, "create directory", dest, err)
	}

	for _, file := range reader.File {
		target, _ := safeTarget(dest, file.Name)
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return counts, services.Wrap(services.ErrFileSystem, stage.Unpack, "create directory", target, err)
			}
			continue
		}
		if err := extractFile(file, target); err != nil {
			return counts, err
		}
	}

	files, _, err := fileutil.DirStats(dest)
	if err != nil {
		return counts, services.Wrap(services.ErrFileSystem, stage.Unpack, "count files", dest, err)
	}
	counts.Actual = files
	return counts, nil
}

func extractFile(file *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return services.Wrap(services.ErrFileSystem, stage.Unpack, "create directory", filepath.Dir(target), err)
	}
	src, err := file.Open()
	if err != nil {
		return services.Wrap(services.ErrFormat, stage.Unpack, "read entry", file.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return services.Wrap(services.ErrFileSystem, stage.Unpack, "create file", target, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		if errors.Is(err, zip.ErrChecksum) || errors.Is(err, zip.ErrFormat) || errors.Is(err, io.ErrUnexpectedEOF) {
			return services.Wrap(services.ErrFormat, stage.Unpack, "read entry", file.Name, err)
		}
		return services.Wrap(services.ErrFileSystem, stage.Unpack, "write file", target, err)
	}
	if err := dst.Close(); err != nil {
		return services.Wrap(services.ErrFileSystem, stage.Unpack, "write file", target, err)
	}
	return nil
}

// safeTarget resolves name under dest, rejecting absolute paths and parent
// traversal.
func safeTarget(dest, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, "\\") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return filepath.Join(dest, cleaned), nil
}
