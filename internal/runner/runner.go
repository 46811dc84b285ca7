package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"ferry/internal/admission"
	"ferry/internal/config"
	"ferry/internal/ledger"
	"ferry/internal/logging"
	"ferry/internal/notifications"
	"ferry/internal/pipeline"
	"ferry/internal/preflight"
	"ferry/internal/services"
	"ferry/internal/stage"
	"ferry/internal/staging"
)

// Options selects what a single run processes.
type Options struct {
	// Units overrides dataset.units when non-empty.
	Units []string
	// Artifact stages a local archive for the single unit in Units instead
	// of running the download command.
	Artifact string
	// SkipPreflight disables the directory and binary checks.
	SkipPreflight bool
}

// Runner executes pipeline runs for one configuration.
type Runner struct {
	cfg       *config.Config
	logger    *slog.Logger
	notifier  notifications.Service
	commands  services.CommandRunner
	freeSpace admission.FreeSpaceFunc
	signals   bool
}

// Option customizes a Runner.
type Option func(*Runner)

// WithNotifier overrides the notification service built from config.
func WithNotifier(svc notifications.Service) Option {
	return func(r *Runner) { r.notifier = svc }
}

// WithCommandRunner routes every external command through runner.
func WithCommandRunner(runner services.CommandRunner) Option {
	return func(r *Runner) { r.commands = runner }
}

// WithFreeSpace replaces the admission free space probe.
func WithFreeSpace(fn admission.FreeSpaceFunc) Option {
	return func(r *Runner) { r.freeSpace = fn }
}

// WithoutSignals leaves SIGINT and SIGTERM to the caller.
func WithoutSignals() Option {
	return func(r *Runner) { r.signals = false }
}

// New returns a Runner for cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "runner"),
		notifier: notifications.NewService(cfg),
		commands: services.ExecRunner{},
		signals:  true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes the selected units through fetch, unpack, transform, and
// publish. Cancelling ctx (or a signal) stops admitting new units; units
// already in the graph finish their current stages.
func (r *Runner) Run(ctx context.Context, opts Options) (Summary, error) {
	if r.cfg == nil {
		return Summary{}, services.Wrap(services.ErrConfiguration, "run", "start", "config is required", nil)
	}
	units := opts.Units
	if len(units) == 0 {
		units = r.cfg.Units()
	}
	units = uniqueUnits(units)
	artifactRun := strings.TrimSpace(opts.Artifact) != ""
	if artifactRun && len(units) != 1 {
		return Summary{}, services.Wrap(services.ErrValidation, "run", "start", "--artifact requires exactly one --unit", nil)
	}
	if err := r.cfg.ValidateForRun(units, artifactRun); err != nil {
		return Summary{}, services.Wrap(services.ErrValidation, "run", "start", "", err)
	}
	if err := r.cfg.EnsureDirectories(); err != nil {
		return Summary{}, services.Wrap(services.ErrFileSystem, "run", "start", "", err)
	}
	layout := staging.Layout{Root: r.cfg.Paths.StagingDir}
	if err := layout.Ensure(); err != nil {
		return Summary{}, services.Wrap(services.ErrFileSystem, "run", "start", "", err)
	}

	lock, err := acquireRunLock(r.cfg.Paths.StateDir)
	if err != nil {
		return Summary{}, err
	}
	defer func() { _ = lock.Unlock() }()

	if r.signals {
		var cancel context.CancelFunc
		ctx, cancel = signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
	}

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)

	if !opts.SkipPreflight {
		if err := r.checkPreflight(logger, artifactRun); err != nil {
			return Summary{RunID: runID}, err
		}
	}
	logging.CleanupOldLogs(logger, r.cfg.Logging.RetentionDays, logging.RetentionTarget{
		Dir:     r.cfg.Paths.LogDir,
		Pattern: "*.log*",
		Exclude: []string{logging.LogFileName},
	})

	stores, err := r.openLedgers()
	if err != nil {
		return Summary{RunID: runID}, err
	}
	defer closeLedgers(stores)

	a := &assembly{
		cfg:      r.cfg,
		layout:   layout,
		stores:   stores,
		logger:   r.logger,
		notifier: r.notifier,
		commands: r.commands,
	}
	if artifactRun {
		a.artifacts = map[string]string{units[0]: opts.Artifact}
	}
	a.freeSpace = r.freeSpace
	graph, err := pipeline.NewGraph(a.stages(), r.capacities(), r.logger)
	if err != nil {
		return Summary{RunID: runID}, services.Wrap(services.ErrConfiguration, "run", "build graph", "", err)
	}

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("units", len(units)),
		logging.String("dataset", r.cfg.Dataset.Key),
		logging.String("ledger_backend", r.cfg.Ledger.Backend),
		logging.Bool("artifact", artifactRun),
	)
	r.notify(ctx, logger, notifications.EventRunStarted, notifications.Payload{
		"units":   len(units),
		"dataset": r.cfg.Dataset.Key,
	})

	items := make([]pipeline.Item, 0, len(units))
	for _, key := range units {
		items = append(items, pipeline.Item{Key: key})
	}
	report := graph.Run(ctx, items)

	summary := summarize(context.WithoutCancel(ctx), runID, len(units), report, stores)
	summary.CleanupFailures = a.cleanupFailures()
	r.logSummary(logger, summary)
	r.notify(context.WithoutCancel(ctx), logger, notifications.EventRunCompleted, notifications.Payload{
		"completed": len(summary.Completed),
		"failed":    len(summary.Failed),
		"duration":  summary.Duration,
	})
	return summary, nil
}

func (r *Runner) checkPreflight(logger *slog.Logger, artifactRun bool) error {
	failed := preflight.Failed(preflight.RunAll(r.cfg, artifactRun))
	if len(failed) == 0 {
		return nil
	}
	details := make([]string, 0, len(failed))
	for _, result := range failed {
		details = append(details, result.Name+": "+result.Detail)
	}
	logging.ErrorWithContext(logger, "preflight checks failed", "preflight_failed",
		logging.Int("failed", len(failed)),
		logging.String("checks", strings.Join(details, "; ")),
		logging.String(logging.FieldErrorHint, "run ferry preflight for details"),
		logging.String(logging.FieldImpact, "no units processed"),
	)
	return services.Wrap(services.ErrConfiguration, "run", "preflight", strings.Join(details, "; "), nil)
}

func (r *Runner) openLedgers() (map[string]ledger.Store, error) {
	stores := make(map[string]ledger.Store, len(stage.Names()))
	for _, name := range stage.Names() {
		store, err := ledger.Open(r.cfg.Ledger.Backend, r.cfg.Paths.StateDir, name)
		if err != nil {
			closeLedgers(stores)
			if errors.Is(err, ledger.ErrLocked) {
				return nil, fmt.Errorf("%w: %w", ErrRunActive, err)
			}
			return nil, fmt.Errorf("open %s ledger: %w", name, err)
		}
		stores[name] = store
	}
	return stores, nil
}

func closeLedgers(stores map[string]ledger.Store) {
	for _, store := range stores {
		_ = store.Close()
	}
}

func (r *Runner) capacities() []int {
	p := r.cfg.Pipeline
	return []int{p.UnitQueue, p.FetchQueue, p.UnpackQueue, p.TransformQueue, p.DoneQueue}
}

func (r *Runner) notify(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "run continues without push notifications"),
		)
	}
}

func (r *Runner) logSummary(logger *slog.Logger, summary Summary) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("units", summary.Units),
		logging.Int("fed", summary.Fed),
		logging.Int("completed", len(summary.Completed)),
		logging.Int("failed", len(summary.Failed)),
		logging.Bool("interrupted", summary.Interrupted),
		logging.Duration("duration", summary.Duration),
	}
	if summary.CleanupFailures > 0 {
		attrs = append(attrs, logging.Int("cleanup_failures", summary.CleanupFailures))
	}
	for _, st := range summary.Report.Stages {
		attrs = append(attrs,
			logging.Int(st.Name+"_succeeded", st.Succeeded),
			logging.Int(st.Name+"_skipped", st.Skipped),
			logging.Int(st.Name+"_failed", st.Failed),
		)
	}
	if summary.OK() {
		logger.Info("run complete", logging.Args(attrs...)...)
		return
	}
	logger.Warn("run complete with failures", logging.Args(attrs...)...)
}

func uniqueUnits(units []string) []string {
	seen := make(map[string]struct{}, len(units))
	out := make([]string, 0, len(units))
	for _, unit := range units {
		unit = strings.TrimSpace(unit)
		if unit == "" {
			continue
		}
		if _, ok := seen[unit]; ok {
			continue
		}
		seen[unit] = struct{}{}
		out = append(out, unit)
	}
	return out
}
