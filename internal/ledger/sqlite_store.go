package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLiteStore keeps one row per unit in a stage-local SQLite database.
// It holds the same sidecar writer lock as FileStore.
type SQLiteStore struct {
	db   *sql.DB
	path string
	lock *flock.Flock
	now  func() time.Time
}

// OpenSQLite initializes or connects to the stage database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure state directory: %w", err)
	}
	lock, err := acquireWriterLock(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, path: path, lock: lock, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: %s has version %d, expected %d (delete the file to rebuild it)",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}
	return nil
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) IsDone(ctx context.Context, key string) (bool, error) {
	rec, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return ok && rec.Status == StatusSuccess, nil
}

func (s *SQLiteStore) Record(ctx context.Context, key string, status Status, message string) error {
	if err := validateStatus(status); err != nil {
		return err
	}
	rec := newRecord(status, message, s.now())
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO unit_status (unit_key, status, error, recorded_at) VALUES (?, ?, ?, ?)
             ON CONFLICT(unit_key) DO UPDATE SET status = excluded.status, error = excluded.error, recorded_at = excluded.recorded_at`,
			key, string(rec.Status), nullableString(rec.Error), rec.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("record unit status: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Record, bool, error) {
	var (
		rec     Record
		status  string
		message sql.NullString
	)
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			"SELECT status, error, recorded_at FROM unit_status WHERE unit_key = ?", key,
		).Scan(&status, &message, &rec.Timestamp)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get unit status: %w", err)
	}
	rec.Status = Status(status)
	if message.Valid {
		msg := message.String
		rec.Error = &msg
	}
	return rec, true, nil
}

func (s *SQLiteStore) Snapshot(ctx context.Context) (map[string]Record, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT unit_key, status, error, recorded_at FROM unit_status ORDER BY unit_key")
	if err != nil {
		return nil, fmt.Errorf("list unit status: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Record)
	for rows.Next() {
		var (
			key     string
			status  string
			message sql.NullString
			rec     Record
		)
		if err := rows.Scan(&key, &status, &message, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan unit status: %w", err)
		}
		rec.Status = Status(status)
		if message.Valid {
			msg := message.String
			rec.Error = &msg
		}
		out[key] = rec
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Reset(ctx context.Context, key string) (bool, error) {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM unit_status WHERE unit_key = ?", key)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("reset unit status: %w", err)
	}
	return affected > 0, nil
}

func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database and releases the writer lock.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	if s.lock != nil {
		err = errors.Join(err, s.lock.Unlock())
	}
	return err
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
