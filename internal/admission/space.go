package admission

import "golang.org/x/sys/unix"

// FreeSpaceFunc reports the bytes available to unprivileged users at path.
type FreeSpaceFunc func(path string) (uint64, error)

// FreeBytes returns Bavail*Bsize for the filesystem containing path.
func FreeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return uint64(stat.Bavail) * uint64(stat.Bsize), nil
}
