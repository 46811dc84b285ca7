package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"ferry/internal/config"
	"ferry/internal/fileutil"
	"ferry/internal/logging"
	"ferry/internal/services"
	"ferry/internal/stage"
	"ferry/internal/staging"
)

// Fetcher downloads unit archives into the staging layout.
type Fetcher struct {
	runner    services.CommandRunner
	command   string
	args      []string
	dataset   string
	pattern   string
	layout    staging.Layout
	artifacts map[string]string
	logger    *slog.Logger
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithRunner overrides the command runner.
func WithRunner(runner services.CommandRunner) Option {
	return func(f *Fetcher) { f.runner = runner }
}

// WithArtifact stages the local archive at path for key instead of running
// the download command.
func WithArtifact(key, path string) Option {
	return func(f *Fetcher) {
		if f.artifacts == nil {
			f.artifacts = make(map[string]string)
		}
		f.artifacts[key] = path
	}
}

// New builds a Fetcher from cfg.
func New(cfg *config.Config, layout staging.Layout, logger *slog.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		runner:  services.ExecRunner{},
		command: cfg.Fetch.Command,
		args:    append([]string(nil), cfg.Fetch.Args...),
		dataset: cfg.Dataset.Key,
		pattern: cfg.Fetch.ArchivePattern,
		layout:  layout,
		logger:  logging.NewComponentLogger(logger, "fetch"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Operation adapts Fetch to the stage contract.
func (f *Fetcher) Operation() stage.Operation {
	return stage.FromError(f.Fetch)
}

// Fetch clears the unit's fetch directory and fills it with the unit's
// archive. It fails unless at least one file matching the archive pattern is
// present afterwards.
func (f *Fetcher) Fetch(ctx context.Context, key string) error {
	dir := f.layout.FetchDir(key)
	if err := os.RemoveAll(dir); err != nil {
		return services.Wrap(services.ErrFileSystem, stage.Fetch, "reset directory", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrFileSystem, stage.Fetch, "create directory", dir, err)
	}

	logger := logging.WithContext(ctx, f.logger)
	start := time.Now()
	if src, ok := f.artifacts[key]; ok {
		if err := f.stageArtifact(src, dir); err != nil {
			return err
		}
	} else if err := f.download(ctx, key, dir); err != nil {
		return err
	}

	archives, err := staging.FindArchives(dir, f.pattern)
	if err != nil {
		return services.Wrap(services.ErrFileSystem, stage.Fetch, "locate archive", dir, err)
	}
	if len(archives) == 0 {
		return services.Wrap(services.ErrExternalTool, stage.Fetch, "locate archive",
			fmt.Sprintf("no file matching %q in %s", f.pattern, dir), nil)
	}
	_, size, _ := fileutil.DirStats(dir)
	logger.Info("unit archive staged",
		logging.String(logging.FieldEventType, "fetch_complete"),
		logging.Int("archives", len(archives)),
		logging.String("size", humanize.IBytes(uint64(size))),
		logging.Duration("elapsed", time.Since(start).Round(time.Millisecond)),
	)
	return nil
}

func (f *Fetcher) download(ctx context.Context, key, dir string) error {
	args := services.ExpandArgs(f.args, map[string]string{
		"dataset": f.dataset,
		"unit":    key,
		"dir":     dir,
	})
	logging.WithContext(ctx, f.logger).Debug("running download command",
		logging.String("command", f.command),
		logging.Int("args", len(args)),
	)
	if _, err := f.runner.Run(ctx, dir, f.command, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, stage.Fetch, "download", "command "+f.command+" failed", err)
	}
	return nil
}

func (f *Fetcher) stageArtifact(src, dir string) error {
	if ok, _ := filepath.Match(f.pattern, filepath.Base(src)); !ok {
		return services.Wrap(services.ErrValidation, stage.Fetch, "stage artifact",
			fmt.Sprintf("%s does not match archive pattern %q", src, f.pattern), nil)
	}
	dst := filepath.Join(dir, filepath.Base(src))
	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		return services.Wrap(services.ErrFileSystem, stage.Fetch, "stage artifact", src, err)
	}
	return nil
}
