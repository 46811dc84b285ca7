package staging

import (
	"context"
	"log/slog"
	"os"

	"ferry/internal/logging"
	"ferry/internal/services"
)

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// FinalizeResult reports the outcome of removing a unit's staging data.
// OK is true only when every removal succeeded.
type FinalizeResult struct {
	OK      bool
	Removed []string
	Errors  []CleanupError
}

// Finalize removes the fetch, unpack, and transform directories of key. Each
// removal is attempted independently; failures are logged and returned but
// never affect the unit's recorded status.
func Finalize(ctx context.Context, key string, layout Layout, logger *slog.Logger) FinalizeResult {
	logger = logging.WithContext(services.WithUnit(ctx, key), logging.NewComponentLogger(logger, "staging"))
	result := FinalizeResult{OK: true}

	for _, dir := range layout.UnitDirs(key) {
		if err := os.RemoveAll(dir); err != nil {
			result.OK = false
			wrapped := services.Wrap(services.ErrFileSystem, "cleanup", "remove", dir, err)
			result.Errors = append(result.Errors, CleanupError{Path: dir, Error: wrapped})
			logging.WarnWithContext(logger, "staging removal failed", "cleanup_partial",
				logging.String("path", dir),
				logging.Error(wrapped),
				logging.String(logging.FieldErrorKind, services.KindFileSystem),
				logging.String(logging.FieldErrorHint, "remove the directory manually or run ferry staging clean"),
				logging.String(logging.FieldImpact, "disk space not reclaimed; published output is unaffected"),
			)
			continue
		}
		result.Removed = append(result.Removed, dir)
	}

	if result.OK {
		logger.Info("staging cleaned",
			logging.String(logging.FieldEventType, "cleanup_complete"),
			logging.Int("directories", len(result.Removed)),
		)
	}
	return result
}
