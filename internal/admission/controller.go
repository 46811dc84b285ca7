package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"ferry/internal/logging"
	"ferry/internal/services"
	"ferry/internal/stage"
)

// DefaultSafetyFactor leaves room for the unpacked copy next to the archive.
const DefaultSafetyFactor = 2.0

// Controller gates downloads on free disk space.
type Controller struct {
	sizer     Sizer
	target    string
	factor    float64
	freeSpace FreeSpaceFunc
	logger    *slog.Logger
}

// Option customizes a Controller.
type Option func(*Controller)

// WithFreeSpace replaces the free space probe.
func WithFreeSpace(fn FreeSpaceFunc) Option {
	return func(c *Controller) {
		if fn != nil {
			c.freeSpace = fn
		}
	}
}

// New returns a Controller that checks the volume holding target.
func New(sizer Sizer, target string, factor float64, logger *slog.Logger, opts ...Option) *Controller {
	if factor <= 0 {
		factor = DefaultSafetyFactor
	}
	c := &Controller{
		sizer:     sizer,
		target:    target,
		factor:    factor,
		freeSpace: FreeBytes,
		logger:    logging.NewComponentLogger(logger, "admission"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check returns nil when key may proceed and an error wrapping
// services.ErrResourceExhausted when the volume is too small.
func (c *Controller) Check(ctx context.Context, key string) error {
	logger := logging.WithContext(ctx, c.logger)

	token, err := c.sizer.Size(ctx, key)
	if err != nil {
		c.skip(logger, "remote size unavailable", err)
		return nil
	}
	size, err := ParseSize(token)
	if err != nil {
		c.skip(logger, "remote size unparseable", err)
		return nil
	}
	free, err := c.freeSpace(nearestExisting(c.target))
	if err != nil {
		c.skip(logger, "free space probe failed", err)
		return nil
	}

	required := uint64(math.MaxUint64)
	if scaled := float64(size) * c.factor; scaled < math.MaxUint64 {
		required = uint64(scaled)
	}
	if free < required {
		logging.WarnWithContext(logger, "admission rejected", "admission_reject",
			logging.String("remote_size", token),
			logging.String("required", humanize.IBytes(required)),
			logging.String("free", humanize.IBytes(free)),
			logging.Float64("safety_factor", c.factor),
			logging.String(logging.FieldErrorHint, "free space on "+c.target+" or lower admission.safety_factor"),
			logging.String(logging.FieldImpact, "unit not downloaded; retried on the next run"),
		)
		return services.Wrap(services.ErrResourceExhausted, "admission", "check",
			fmt.Sprintf("insufficient disk space: need %s, have %s", humanize.IBytes(required), humanize.IBytes(free)), nil)
	}

	logger.Info("admission granted",
		logging.String(logging.FieldEventType, "admission_ok"),
		logging.String("remote_size", token),
		logging.String("required", humanize.IBytes(required)),
		logging.String("free", humanize.IBytes(free)),
	)
	return nil
}

func (c *Controller) skip(logger *slog.Logger, msg string, err error) {
	hint := "check the listing command output"
	if errors.Is(err, ErrInvalidSize) {
		hint = "listing size token format may have changed"
	}
	logging.WarnWithContext(logger, msg+"; admitting unit", "admission_skip",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, "download proceeds without a disk space check"),
	)
}

// Gate returns an operation that runs Check before op.
func (c *Controller) Gate(op stage.Operation) stage.Operation {
	return func(ctx context.Context, key string) stage.Result {
		if err := c.Check(ctx, key); err != nil {
			return stage.Failure(err)
		}
		return op(ctx, key)
	}
}

func nearestExisting(path string) string {
	current := filepath.Clean(path)
	for {
		if _, err := os.Stat(current); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return current
		}
		current = parent
	}
}
