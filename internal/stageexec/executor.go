package stageexec

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"ferry/internal/ledger"
	"ferry/internal/logging"
	"ferry/internal/notifications"
	"ferry/internal/services"
	"ferry/internal/stage"
)

// Executor binds one stage to its ledger.
type Executor struct {
	stage    string
	store    ledger.Store
	logger   *slog.Logger
	notifier notifications.Service
}

// Option customizes an Executor.
type Option func(*Executor)

// WithNotifier publishes unit failures through svc.
func WithNotifier(svc notifications.Service) Option {
	return func(e *Executor) { e.notifier = svc }
}

// New returns an executor for stageName backed by store.
func New(stageName string, store ledger.Store, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		stage:  stageName,
		store:  store,
		logger: logging.NewComponentLogger(logger, "stageexec"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stage returns the stage name this executor records under.
func (e *Executor) Stage() string { return e.stage }

// Run executes op for key unless the ledger already holds SUCCESS.
func (e *Executor) Run(ctx context.Context, key string, op stage.Operation) stage.Result {
	ctx = services.WithStage(services.WithUnit(ctx, key), e.stage)
	logger := logging.WithContext(ctx, e.logger)

	done, err := e.store.IsDone(ctx, key)
	if err != nil {
		logging.ErrorWithContext(logger, "ledger lookup failed", "ledger_read_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.KindFileSystem),
			logging.String(logging.FieldErrorHint, "inspect "+e.store.Path()),
			logging.String(logging.FieldImpact, "unit not run and not recorded; retried on the next run"),
		)
		return stage.Failure(services.Wrap(services.ErrFileSystem, e.stage, "ledger lookup", "ledger lookup failed", err))
	}
	if done {
		logger.Info("unit skipped", logging.String(logging.FieldEventType, "unit_skip"))
		return stage.Result{OK: true, Skipped: true}
	}

	logger.Info("unit started", logging.String(logging.FieldEventType, "unit_start"))
	result := invoke(ctx, logger, key, op)

	if result.OK {
		if err := e.store.Record(ctx, key, ledger.StatusSuccess, ""); err != nil {
			e.logRecordFailure(logger, ledger.StatusSuccess, err)
		}
		attrs := []logging.Attr{logging.String(logging.FieldEventType, "unit_success")}
		if result.Counts != nil {
			attrs = append(attrs, logging.Int("expected", result.Counts.Expected), logging.Int("actual", result.Counts.Actual))
		}
		logger.Info("unit completed", logging.Args(attrs...)...)
		return result
	}

	message := result.Message()
	if err := e.store.Record(ctx, key, ledger.StatusFailed, message); err != nil {
		e.logRecordFailure(logger, ledger.StatusFailed, err)
	}
	logging.ErrorWithContext(logger, "unit failed", "unit_failure",
		logging.String("error_message", message),
		logging.String(logging.FieldErrorKind, services.Kind(result.Error())),
		logging.String(logging.FieldErrorHint, "fix the cause and rerun; the unit will be retried"),
	)
	if e.notifier != nil {
		if err := e.notifier.Publish(ctx, notifications.EventUnitFailed, notifications.Payload{
			"unit":  key,
			"stage": e.stage,
			"error": message,
		}); err != nil {
			logger.Debug("unit failure notification failed", logging.Error(err))
		}
	}
	return result
}

func (e *Executor) logRecordFailure(logger *slog.Logger, status ledger.Status, err error) {
	logging.ErrorWithContext(logger, "ledger write failed", "ledger_write_failed",
		logging.String("status", string(status)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check permissions and free space for "+e.store.Path()),
	)
}

func invoke(ctx context.Context, logger *slog.Logger, key string, op stage.Operation) (result stage.Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("stage operation panicked",
				logging.String(logging.FieldEventType, "unit_panic"),
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", strings.TrimSpace(string(debug.Stack()))),
			)
			result = stage.Failure(fmt.Errorf("panic: %v", r))
		}
	}()
	if op == nil {
		return stage.Failure(fmt.Errorf("no operation registered"))
	}
	return op(ctx, key)
}
