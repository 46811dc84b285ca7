package stageexec

import (
	"context"
	"fmt"
	"log/slog"

	"ferry/internal/logging"
	"ferry/internal/services"
	"ferry/internal/stage"
)

// VerifyIntegrity wraps op so that a raw success whose counts disagree is
// reported as an integrity failure. Results without counts pass through.
func VerifyIntegrity(logger *slog.Logger, label string, op stage.Operation) stage.Operation {
	logger = logging.NewComponentLogger(logger, "integrity")
	return func(ctx context.Context, key string) stage.Result {
		result := op(ctx, key)
		if !result.OK || result.Counts == nil {
			return result
		}
		log := logging.WithContext(ctx, logger)
		counts := *result.Counts
		if !counts.Complete() {
			logging.WarnWithContext(log, "integrity check failed", "integrity_mismatch",
				logging.String("check", label),
				logging.Int("expected", counts.Expected),
				logging.Int("actual", counts.Actual),
				logging.String(logging.FieldErrorHint, "inspect the stage output for missing or extra files"),
				logging.String(logging.FieldImpact, "unit recorded as failed and retried on the next run"),
			)
			err := services.Wrap(services.ErrIntegrity, label, "verify",
				fmt.Sprintf("expected %d, got %d", counts.Expected, counts.Actual), nil)
			return stage.Result{Err: err, Counts: result.Counts}
		}
		log.Info("integrity check passed",
			logging.String(logging.FieldEventType, "integrity_ok"),
			logging.String("check", label),
			logging.Int("count", counts.Actual),
		)
		return result
	}
}
