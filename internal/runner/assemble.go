package runner

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"

	"ferry/internal/admission"
	"ferry/internal/config"
	"ferry/internal/fetch"
	"ferry/internal/ledger"
	"ferry/internal/notifications"
	"ferry/internal/pipeline"
	"ferry/internal/publish"
	"ferry/internal/services"
	"ferry/internal/stage"
	"ferry/internal/stageexec"
	"ferry/internal/staging"
	"ferry/internal/transform"
	"ferry/internal/unpack"
)

// assembly holds the collaborators for one run and produces the graph stages.
type assembly struct {
	cfg       *config.Config
	layout    staging.Layout
	stores    map[string]ledger.Store
	logger    *slog.Logger
	notifier  notifications.Service
	commands  services.CommandRunner
	artifacts map[string]string
	freeSpace admission.FreeSpaceFunc

	cleanupFailed atomic.Int64
}

func (a *assembly) executor(name string) *stageexec.Executor {
	return stageexec.New(name, a.stores[name], a.logger, stageexec.WithNotifier(a.notifier))
}

// admission returns nil when the free space check is disabled.
func (a *assembly) admission() *admission.Controller {
	if !a.cfg.Admission.Enabled {
		return nil
	}
	var sizer admission.Sizer
	if len(a.artifacts) > 0 {
		sizer = admission.FileSizer{Paths: a.artifacts}
	} else {
		args := services.ExpandArgs(a.cfg.Admission.ListingArgs, map[string]string{"dataset": a.cfg.Dataset.Key})
		sizer = admission.NewListingSizer(a.commands, a.cfg.Admission.ListingCommand, args)
	}
	var opts []admission.Option
	if a.freeSpace != nil {
		opts = append(opts, admission.WithFreeSpace(a.freeSpace))
	}
	return admission.New(sizer, a.cfg.Paths.StagingDir, a.cfg.Admission.SafetyFactor, a.logger, opts...)
}

func (a *assembly) stages() []pipeline.Stage {
	fetchOpts := []fetch.Option{fetch.WithRunner(a.commands)}
	for key, path := range a.artifacts {
		fetchOpts = append(fetchOpts, fetch.WithArtifact(key, path))
	}
	fetchOp := fetch.New(a.cfg, a.layout, a.logger, fetchOpts...).Operation()
	if ctrl := a.admission(); ctrl != nil {
		fetchOp = ctrl.Gate(fetchOp)
	}
	unpackOp := stageexec.VerifyIntegrity(a.logger, stage.Unpack,
		unpack.New(a.cfg, a.layout, a.logger).Operation())
	transformOp := stageexec.VerifyIntegrity(a.logger, stage.Transform,
		transform.New(a.cfg, a.layout, a.logger, transform.WithRunner(a.commands)).Operation())
	publishOp := stageexec.VerifyIntegrity(a.logger, stage.Publish,
		publish.New(a.cfg, a.layout, a.logger, publish.WithRunner(a.commands)).Operation())

	return []pipeline.Stage{
		{Name: stage.Fetch, Handler: a.forward(stage.Fetch, fetchOp, a.layout.FetchDir)},
		{Name: stage.Unpack, Handler: a.forward(stage.Unpack, unpackOp, a.layout.UnpackDir)},
		{Name: stage.Transform, Handler: a.forward(stage.Transform, transformOp, a.layout.TransformDir)},
		{Name: stage.Publish, Handler: a.publishHandler(publishOp)},
	}
}

// forward runs op under the stage executor and hands the unit's output
// directory downstream.
func (a *assembly) forward(name string, op stage.Operation, output func(string) string) pipeline.Handler {
	exec := a.executor(name)
	return func(ctx context.Context, item pipeline.Item) (stage.Result, []pipeline.Item) {
		result := exec.Run(ctx, item.Key, op)
		return result, []pipeline.Item{{Key: item.Key, Path: output(item.Key)}}
	}
}

func (a *assembly) publishHandler(op stage.Operation) pipeline.Handler {
	exec := a.executor(stage.Publish)
	return func(ctx context.Context, item pipeline.Item) (stage.Result, []pipeline.Item) {
		result := exec.Run(ctx, item.Key, op)
		if result.OK && (!result.Skipped || a.hasStagingData(item.Key)) {
			if cleanup := staging.Finalize(ctx, item.Key, a.layout, a.logger); !cleanup.OK {
				a.cleanupFailed.Add(1)
			}
		}
		return result, []pipeline.Item{{Key: item.Key}}
	}
}

func (a *assembly) hasStagingData(key string) bool {
	for _, dir := range a.layout.UnitDirs(key) {
		if _, err := os.Stat(dir); err == nil {
			return true
		}
	}
	return false
}

func (a *assembly) cleanupFailures() int {
	return int(a.cleanupFailed.Load())
}
