package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"ferry/internal/fileutil"
	"ferry/internal/services"
)

// FileStore keeps the ledger as one JSON object rewritten on every Record.
// The file is replaced atomically and a sidecar lock file rejects a second
// writer.
type FileStore struct {
	mu      sync.Mutex
	path    string
	lock    *flock.Flock
	entries map[string]Record
	now     func() time.Time
}

// OpenFile loads the ledger at path, creating its directory as needed. A
// missing or empty file is an empty ledger; a malformed one is an error.
func OpenFile(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrFileSystem, "ledger", "open", "create state directory", err)
	}

	lock, err := acquireWriterLock(path)
	if err != nil {
		return nil, err
	}

	entries, err := loadEntries(path)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return &FileStore{path: path, lock: lock, entries: entries, now: time.Now}, nil
}

// acquireWriterLock takes the sidecar "<path>.lock" flock that marks the
// single writer of a stage ledger.
func acquireWriterLock(path string) (*flock.Flock, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrFileSystem, "ledger", "open", "acquire ledger lock", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return lock, nil
}

func loadEntries(path string) (map[string]Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Record{}, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrFileSystem, "ledger", "load", "read ledger", err)
	}
	entries := map[string]Record{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, services.Wrap(services.ErrFormat, "ledger", "load", "decode "+path, err)
	}
	return entries, nil
}

func (s *FileStore) IsDone(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[key]
	return ok && rec.Status == StatusSuccess, nil
}

func (s *FileStore) Record(_ context.Context, key string, status Status, message string) error {
	if err := validateStatus(status); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, existed := s.entries[key]
	s.entries[key] = newRecord(status, message, s.now())
	if err := s.flushLocked(); err != nil {
		if existed {
			s.entries[key] = previous
		} else {
			delete(s.entries, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, key string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[key]
	return rec, ok, nil
}

func (s *FileStore) Snapshot(context.Context) (map[string]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.entries), nil
}

func (s *FileStore) Reset(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	delete(s.entries, key)
	if err := s.flushLocked(); err != nil {
		s.entries[key] = previous
		return false, err
	}
	return true, nil
}

func (s *FileStore) Path() string { return s.path }

// Close releases the writer lock.
func (s *FileStore) Close() error {
	if s == nil || s.lock == nil {
		return nil
	}
	return s.lock.Unlock()
}

func (s *FileStore) flushLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "    ")
	if err != nil {
		return services.Wrap(services.ErrFormat, "ledger", "flush", "encode ledger", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, append(data, '\n'), 0o644); err != nil {
		return services.Wrap(services.ErrFileSystem, "ledger", "flush", "write "+s.path, err)
	}
	return nil
}
