package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Status is the recorded outcome of a stage operation for one unit.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// ErrLocked indicates another process already owns the ledger.
var ErrLocked = errors.New("ledger is locked by another process")

// ErrInvalidStatus is returned when Record receives an unknown status.
var ErrInvalidStatus = errors.New("invalid ledger status")

// Record is one unit's entry. Error is nil when no message was recorded.
type Record struct {
	Status    Status  `json:"status"`
	Error     *string `json:"error"`
	Timestamp string  `json:"timestamp"`
}

// Message returns the error message or an empty string.
func (r Record) Message() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// Time parses the record timestamp. A zero time is returned when it is unparseable.
func (r Record) Time() time.Time {
	ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// Store is the unit status ledger owned by a single stage.
type Store interface {
	// IsDone reports whether the unit's last recorded status is SUCCESS.
	IsDone(ctx context.Context, key string) (bool, error)
	// Record overwrites the unit's entry with the given status and message.
	Record(ctx context.Context, key string, status Status, message string) error
	// Get returns the unit's entry and whether one exists.
	Get(ctx context.Context, key string) (Record, bool, error)
	// Snapshot returns a copy of every entry.
	Snapshot(ctx context.Context) (map[string]Record, error)
	// Reset removes the unit's entry and reports whether one existed.
	Reset(ctx context.Context, key string) (bool, error)
	// Path returns the backing file location.
	Path() string
	Close() error
}

// Backends accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// FileName returns the ledger file name for a stage and backend.
func FileName(backend, stage string) string {
	if backend == BackendSQLite {
		return stage + "_state.db"
	}
	return stage + "_state.json"
}

// Open opens the stage ledger under stateDir using the named backend.
func Open(backend, stateDir, stage string) (Store, error) {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		return nil, errors.New("ledger: stage name is required")
	}
	path := filepath.Join(stateDir, FileName(backend, stage))
	switch backend {
	case "", BackendJSON:
		return OpenFile(path)
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("ledger: unsupported backend %q", backend)
	}
}

func validateStatus(status Status) error {
	switch status {
	case StatusSuccess, StatusFailed:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
}

func newRecord(status Status, message string, now time.Time) Record {
	rec := Record{Status: status, Timestamp: now.UTC().Format(time.RFC3339Nano)}
	if message != "" {
		msg := message
		rec.Error = &msg
	}
	return rec
}
