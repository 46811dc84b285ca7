package publish

import (
	"context"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"

	"ferry/internal/config"
	"ferry/internal/fileutil"
	"ferry/internal/logging"
	"ferry/internal/services"
	"ferry/internal/stage"
	"ferry/internal/staging"
)

// Publisher sends transformed files to a sink.
type Publisher struct {
	mode    string
	dir     string
	prefix  string
	command string
	args    []string
	runner  services.CommandRunner
	layout  staging.Layout
	logger  *slog.Logger
}

// Option customizes a Publisher.
type Option func(*Publisher)

// WithRunner overrides the command runner used in command mode.
func WithRunner(runner services.CommandRunner) Option {
	return func(p *Publisher) { p.runner = runner }
}

// New builds a Publisher from cfg.
func New(cfg *config.Config, layout staging.Layout, logger *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		mode:    cfg.Publish.Mode,
		dir:     cfg.Paths.PublishDir,
		prefix:  cfg.Publish.Prefix,
		command: cfg.Publish.Command,
		args:    append([]string(nil), cfg.Publish.Args...),
		runner:  services.ExecRunner{},
		layout:  layout,
		logger:  logging.NewComponentLogger(logger, "publish"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Operation adapts Publish to the stage contract.
func (p *Publisher) Operation() stage.Operation {
	return stage.FromCounts(p.Publish)
}

// ObjectName returns the sink-relative name of rel for key.
func (p *Publisher) ObjectName(key, rel string) string {
	return path.Join(p.prefix, key, filepath.ToSlash(rel))
}

// Publish sends every file under the unit's transform directory. Expected is
// the number of files found; Actual is the number delivered.
func (p *Publisher) Publish(ctx context.Context, key string) (stage.Counts, error) {
	var counts stage.Counts
	src := p.layout.TransformDir(key)
	logger := logging.WithContext(ctx, p.logger)

	var files []string
	err := filepath.WalkDir(src, func(pathValue string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.Type().IsRegular() {
			rel, relErr := filepath.Rel(src, pathValue)
			if relErr != nil {
				return relErr
			}
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return counts, services.Wrap(services.ErrFileSystem, stage.Publish, "scan", src, err)
	}
	counts.Expected = len(files)

	for _, rel := range files {
		if err := p.send(ctx, key, src, rel); err != nil {
			logging.WarnWithContext(logger, "file publish failed", "publish_file_failed",
				logging.String("file", rel),
				logging.Error(err),
				logging.String(logging.FieldErrorKind, services.Kind(err)),
				logging.String(logging.FieldErrorHint, "check the sink is reachable and writable"),
				logging.String(logging.FieldImpact, "unit fails integrity and is published again next run"),
			)
			continue
		}
		counts.Actual++
	}

	logger.Info("unit files published",
		logging.String(logging.FieldEventType, "publish_summary"),
		logging.String("mode", p.mode),
		logging.Int("files", counts.Actual),
		logging.Int("files_expected", counts.Expected),
		logging.String("destination", p.destination(key)),
	)
	return counts, nil
}

func (p *Publisher) send(ctx context.Context, key, src, rel string) error {
	file := filepath.Join(src, rel)
	object := p.ObjectName(key, rel)
	if p.mode == config.PublishModeCommand {
		args := services.ExpandArgs(p.args, map[string]string{
			"file":   file,
			"object": object,
			"unit":   key,
		})
		if _, err := p.runner.Run(ctx, src, p.command, args...); err != nil {
			return services.Wrap(services.ErrExternalTool, stage.Publish, "upload", object, err)
		}
		return nil
	}
	if err := fileutil.CopyFileVerified(file, filepath.Join(p.dir, filepath.FromSlash(object))); err != nil {
		return services.Wrap(services.ErrFileSystem, stage.Publish, "copy", object, err)
	}
	return nil
}

func (p *Publisher) destination(key string) string {
	if p.mode == config.PublishModeCommand {
		return p.command + ":" + path.Join(p.prefix, key)
	}
	return filepath.Join(p.dir, filepath.FromSlash(path.Join(p.prefix, key)))
}
