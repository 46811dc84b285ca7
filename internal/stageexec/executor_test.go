package stageexec_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"ferry/internal/ledger"
	"ferry/internal/logging"
	"ferry/internal/notifications"
	"ferry/internal/services"
	"ferry/internal/stage"
	"ferry/internal/stageexec"
)

func newStore(t *testing.T) *ledger.FileStore {
	t.Helper()
	store, err := ledger.OpenFile(filepath.Join(t.TempDir(), "fetch_state.json"))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type recordingNotifier struct {
	mu       sync.Mutex
	payloads []notifications.Payload
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if event == notifications.EventUnitFailed {
		n.payloads = append(n.payloads, payload)
	}
	return nil
}

func TestRunSkipsCompletedUnits(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	if err := store.Record(ctx, "66065", ledger.StatusSuccess, ""); err != nil {
		t.Fatal(err)
	}
	exec := stageexec.New(stage.Fetch, store, logging.NewNop())

	calls := 0
	res := exec.Run(ctx, "66065", func(context.Context, string) stage.Result {
		calls++
		return stage.Success()
	})
	if calls != 0 {
		t.Fatalf("operation invoked %d times for completed unit", calls)
	}
	if !res.OK || !res.Skipped {
		t.Fatalf("expected skipped success, got %+v", res)
	}
}

// busyStore fails every IsDone lookup the way a locked SQLite ledger does.
type busyStore struct {
	ledger.Store
}

func (busyStore) IsDone(context.Context, string) (bool, error) {
	return false, errors.New("database is locked")
}

func TestRunFailsWithoutRecordingWhenLookupFails(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	if err := store.Record(ctx, "A", ledger.StatusSuccess, ""); err != nil {
		t.Fatal(err)
	}
	before, _, err := store.Get(ctx, "A")
	if err != nil {
		t.Fatal(err)
	}
	exec := stageexec.New(stage.Fetch, busyStore{Store: store}, logging.NewNop())

	calls := 0
	res := exec.Run(ctx, "A", func(context.Context, string) stage.Result {
		calls++
		return stage.Success()
	})
	if calls != 0 {
		t.Fatalf("operation invoked %d time(s) after a failed ledger lookup", calls)
	}
	if res.OK || !errors.Is(res.Error(), services.ErrFileSystem) {
		t.Fatalf("expected filesystem failure, got %+v", res)
	}
	after, ok, err := store.Get(ctx, "A")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if after.Status != ledger.StatusSuccess || after.Timestamp != before.Timestamp {
		t.Fatalf("ledger entry changed: before %+v after %+v", before, after)
	}
}

func TestRunRecordsSuccessAndSkipsOnRerun(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	exec := stageexec.New(stage.Fetch, store, logging.NewNop())

	calls := 0
	op := func(context.Context, string) stage.Result {
		calls++
		return stage.Success()
	}
	if res := exec.Run(ctx, "66065", op); !res.OK || res.Skipped {
		t.Fatalf("unexpected first result %+v", res)
	}
	if res := exec.Run(ctx, "66065", op); !res.Skipped {
		t.Fatalf("expected second run skipped, got %+v", res)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one invocation, got %d", calls)
	}
	rec, ok, _ := store.Get(ctx, "66065")
	if !ok || rec.Status != ledger.StatusSuccess || rec.Error != nil {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestRunRecordsFailures(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		op   stage.Operation
		want string
	}{
		{
			name: "error message",
			op:   stage.FromError(func(context.Context, string) error { return errors.New("aihubshell exited 1") }),
			want: "aihubshell exited 1",
		},
		{
			name: "plain false",
			op:   func(context.Context, string) stage.Result { return stage.Result{} },
			want: stage.GenericFailure,
		},
		{
			name: "panic",
			op:   func(context.Context, string) stage.Result { panic("index out of range") },
			want: "panic: index out of range",
		},
		{
			name: "nil operation",
			op:   nil,
			want: "no operation registered",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			notifier := &recordingNotifier{}
			exec := stageexec.New(stage.Unpack, store, logging.NewNop(), stageexec.WithNotifier(notifier))

			res := exec.Run(ctx, "66066", tt.op)
			if res.OK {
				t.Fatal("expected failure")
			}
			rec, ok, _ := store.Get(ctx, "66066")
			if !ok || rec.Status != ledger.StatusFailed {
				t.Fatalf("expected FAILED record, got %+v", rec)
			}
			if rec.Message() != tt.want {
				t.Fatalf("recorded message %q, want %q", rec.Message(), tt.want)
			}
			if len(notifier.payloads) != 1 || notifier.payloads[0]["stage"] != stage.Unpack {
				t.Fatalf("expected one failure notification, got %v", notifier.payloads)
			}
		})
	}
}

func TestRunRetriesFailedUnits(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	exec := stageexec.New(stage.Fetch, store, logging.NewNop())

	attempts := 0
	op := func(context.Context, string) stage.Result {
		attempts++
		if attempts == 1 {
			return stage.Failure(errors.New("timeout"))
		}
		return stage.Success()
	}
	exec.Run(ctx, "66065", op)
	if res := exec.Run(ctx, "66065", op); !res.OK || res.Skipped {
		t.Fatalf("expected retry to succeed, got %+v", res)
	}
	if attempts != 2 {
		t.Fatalf("expected two attempts, got %d", attempts)
	}
}

func TestRunPassesUnitContext(t *testing.T) {
	store := newStore(t)
	exec := stageexec.New(stage.Transform, store, logging.NewNop())
	exec.Run(context.Background(), "66065", func(ctx context.Context, key string) stage.Result {
		unit, _ := services.UnitFromContext(ctx)
		name, _ := services.StageFromContext(ctx)
		if unit != key || name != stage.Transform {
			t.Errorf("unexpected context unit=%q stage=%q", unit, name)
		}
		return stage.Success()
	})
}

func TestVerifyIntegrityDecisionTable(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name      string
		raw       stage.Result
		wantOK    bool
		integrity bool
	}{
		{"raw failure", stage.Counted(false, 10, 10, errors.New("zip: not a valid zip file")), false, false},
		{"mismatch", stage.Counted(true, 10, 9, nil), false, true},
		{"match", stage.Counted(true, 10, 10, nil), true, false},
		{"boolean success", stage.Success(), true, false},
		{"boolean failure", stage.Result{}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := stageexec.VerifyIntegrity(logging.NewNop(), "transform", func(context.Context, string) stage.Result {
				return tt.raw
			})
			res := op(ctx, "66065")
			if res.OK != tt.wantOK {
				t.Fatalf("OK=%v, want %v", res.OK, tt.wantOK)
			}
			if got := errors.Is(res.Err, services.ErrIntegrity); got != tt.integrity {
				t.Fatalf("integrity error=%v, want %v (%v)", got, tt.integrity, res.Err)
			}
		})
	}
}

func TestExecutorRecordsIntegrityMismatch(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	exec := stageexec.New(stage.Transform, store, logging.NewNop())

	op := stageexec.VerifyIntegrity(logging.NewNop(), "transform", stage.FromCounts(func(context.Context, string) (stage.Counts, error) {
		return stage.Counts{Expected: 10, Actual: 9}, nil
	}))
	res := exec.Run(ctx, "66065", op)
	if res.OK {
		t.Fatal("expected integrity failure")
	}
	rec, _, _ := store.Get(ctx, "66065")
	if rec.Status != ledger.StatusFailed || !strings.Contains(rec.Message(), "expected 10, got 9") {
		t.Fatalf("unexpected record %+v (%q)", rec, rec.Message())
	}
	if services.Kind(res.Err) != services.KindIntegrity {
		t.Fatalf("unexpected kind %q", services.Kind(res.Err))
	}
}
