package runner

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the run lock created under paths.state_dir.
const LockFileName = "ferry.lock"

// ErrRunActive reports that another run holds the data-root lock.
var ErrRunActive = errors.New("another ferry run is active for this data root")

func acquireRunLock(stateDir string) (*flock.Flock, error) {
	lockPath := filepath.Join(stateDir, LockFileName)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrRunActive, lockPath)
	}
	return lock, nil
}
