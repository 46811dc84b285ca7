package transform

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"ferry/internal/config"
	"ferry/internal/fileutil"
	"ferry/internal/logging"
	"ferry/internal/services"
	"ferry/internal/stage"
	"ferry/internal/staging"
)

// Transformer runs the conversion command over every image of a unit.
type Transformer struct {
	runner    services.CommandRunner
	command   string
	args      []string
	outputExt string
	images    map[string]struct{}
	copies    map[string]struct{}
	size      int
	quality   int
	workers   int
	layout    staging.Layout
	logger    *slog.Logger
}

// Option customizes a Transformer.
type Option func(*Transformer)

// WithRunner overrides the command runner.
func WithRunner(runner services.CommandRunner) Option {
	return func(t *Transformer) { t.runner = runner }
}

// New builds a Transformer from cfg.
func New(cfg *config.Config, layout staging.Layout, logger *slog.Logger, opts ...Option) *Transformer {
	t := &Transformer{
		runner:    services.ExecRunner{},
		command:   cfg.Transform.Command,
		args:      append([]string(nil), cfg.Transform.Args...),
		outputExt: cfg.Transform.OutputExt,
		images:    extensionSet(cfg.Transform.ImageExtensions),
		copies:    extensionSet(cfg.Transform.CopyExtensions),
		size:      cfg.Transform.TargetSize,
		quality:   cfg.Transform.Quality,
		workers:   cfg.Transform.Workers,
		layout:    layout,
		logger:    logging.NewComponentLogger(logger, "transform"),
	}
	if t.workers <= 0 {
		t.workers = 1
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func extensionSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		set[strings.ToLower(ext)] = struct{}{}
	}
	return set
}

// Operation adapts Transform to the stage contract.
func (t *Transformer) Operation() stage.Operation {
	return stage.FromCounts(t.Transform)
}

// Transform converts every image under the unit's unpack directory into its
// transform directory, preserving relative paths, and copies label files
// verbatim. Expected counts images found; Actual counts outputs produced.
func (t *Transformer) Transform(ctx context.Context, key string) (stage.Counts, error) {
	var counts stage.Counts
	src := t.layout.UnpackDir(key)
	dst := t.layout.TransformDir(key)
	logger := logging.WithContext(ctx, t.logger)

	images, labels, err := t.scan(src)
	if err != nil {
		return counts, services.Wrap(services.ErrFileSystem, stage.Transform, "scan", src, err)
	}
	counts.Expected = len(images)

	if err := os.RemoveAll(dst); err != nil {
		return counts, services.Wrap(services.ErrFileSystem, stage.Transform, "reset directory", dst, err)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return counts, services.Wrap(services.ErrFileSystem, stage.Transform, "create directory", dst, err)
	}

	for _, rel := range labels {
		target := filepath.Join(dst, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return counts, services.Wrap(services.ErrFileSystem, stage.Transform, "copy label", rel, err)
		}
		if err := fileutil.CopyFile(filepath.Join(src, rel), target); err != nil {
			return counts, services.Wrap(services.ErrFileSystem, stage.Transform, "copy label", rel, err)
		}
	}

	start := time.Now()
	counts.Actual = t.convertAll(ctx, logger, src, dst, images)
	t.logSummary(logger, dst, counts, len(labels), time.Since(start))
	return counts, nil
}

// scan returns the image and label paths under root, relative to root.
func (t *Transformer) scan(root string) (images, labels []string, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := t.images[ext]; ok {
			images = append(images, rel)
		} else if _, ok := t.copies[ext]; ok {
			labels = append(labels, rel)
		}
		return nil
	})
	return images, labels, err
}

func (t *Transformer) convertAll(ctx context.Context, logger *slog.Logger, src, dst string, images []string) int {
	jobs := make(chan string)
	var produced atomic.Int64
	var wg sync.WaitGroup

	workers := min(t.workers, len(images))
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rel := range jobs {
				if err := t.convert(ctx, src, dst, rel); err != nil {
					logging.WarnWithContext(logger, "image conversion failed", "transform_image_failed",
						logging.String("image", rel),
						logging.Error(err),
						logging.String(logging.FieldErrorKind, services.Kind(err)),
						logging.String(logging.FieldErrorHint, "run the transform command on the image by hand"),
						logging.String(logging.FieldImpact, "unit fails integrity and is retried next run"),
					)
					continue
				}
				produced.Add(1)
			}
		}()
	}
	for _, rel := range images {
		jobs <- rel
	}
	close(jobs)
	wg.Wait()
	return int(produced.Load())
}

func (t *Transformer) convert(ctx context.Context, src, dst, rel string) error {
	input := filepath.Join(src, rel)
	output := filepath.Join(dst, strings.TrimSuffix(rel, filepath.Ext(rel))+t.outputExt)
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return services.Wrap(services.ErrFileSystem, stage.Transform, "create directory", filepath.Dir(output), err)
	}
	args := services.ExpandArgs(t.args, map[string]string{
		"input":   input,
		"output":  output,
		"size":    strconv.Itoa(t.size),
		"quality": strconv.Itoa(t.quality),
	})
	if _, err := t.runner.Run(ctx, filepath.Dir(output), t.command, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, stage.Transform, "convert", rel, err)
	}
	info, err := os.Stat(output)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, stage.Transform, "convert", "no output for "+rel, err)
	}
	if info.Size() == 0 {
		_ = os.Remove(output)
		return services.Wrap(services.ErrExternalTool, stage.Transform, "convert", "empty output for "+rel, nil)
	}
	return nil
}

func (t *Transformer) logSummary(logger *slog.Logger, dst string, counts stage.Counts, labels int, elapsed time.Duration) {
	_, size, _ := fileutil.DirStats(dst)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "transform_summary"),
		logging.Int("images", counts.Actual),
		logging.Int("images_expected", counts.Expected),
		logging.Int("labels", labels),
		logging.String("output_size", humanize.IBytes(uint64(size))),
		logging.Duration("elapsed", elapsed.Round(time.Millisecond)),
	}
	if counts.Actual > 0 {
		attrs = append(attrs, logging.String("avg_image_size", humanize.IBytes(uint64(size)/uint64(counts.Actual))))
	}
	if seconds := elapsed.Seconds(); seconds > 0 {
		attrs = append(attrs, logging.String("rate", humanize.FtoaWithDigits(float64(counts.Actual)/seconds, 2)+" img/s"))
	}
	logger.Info("transform summary", logging.Args(attrs...)...)
}
