package unpack

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"ferry/internal/config"
	"ferry/internal/logging"
	"ferry/internal/services"
	"ferry/internal/stage"
	"ferry/internal/staging"
)

// Unpacker extracts every archive of a unit.
type Unpacker struct {
	layout        staging.Layout
	pattern       string
	removeArchive bool
	logger        *slog.Logger
}

// New builds an Unpacker from cfg.
func New(cfg *config.Config, layout staging.Layout, logger *slog.Logger) *Unpacker {
	return &Unpacker{
		layout:        layout,
		pattern:       cfg.Fetch.ArchivePattern,
		removeArchive: cfg.Unpack.RemoveArchive,
		logger:        logging.NewComponentLogger(logger, "unpack"),
	}
}

// Operation adapts Unpack to the stage contract.
func (u *Unpacker) Operation() stage.Operation {
	return stage.FromCounts(u.Unpack)
}

// Unpack extracts each archive in the unit's fetch directory into
// <unpack>/<unit>/<archive-stem>/ and returns the summed counts. Archives are
// removed afterwards only when enabled and every count matched.
func (u *Unpacker) Unpack(ctx context.Context, key string) (stage.Counts, error) {
	var total stage.Counts
	logger := logging.WithContext(ctx, u.logger)

	archives, err := staging.FindArchives(u.layout.FetchDir(key), u.pattern)
	if err != nil {
		return total, services.Wrap(services.ErrFileSystem, stage.Unpack, "locate archive", u.layout.FetchDir(key), err)
	}
	if len(archives) == 0 {
		return total, services.Wrap(services.ErrFileSystem, stage.Unpack, "locate archive",
			"no archive in "+u.layout.FetchDir(key), nil)
	}

	dest := u.layout.UnpackDir(key)
	if err := os.RemoveAll(dest); err != nil {
		return total, services.Wrap(services.ErrFileSystem, stage.Unpack, "reset directory", dest, err)
	}
	for _, archive := range archives {
		counts, err := Extract(archive, filepath.Join(dest, staging.ArchiveStem(archive)))
		total.Expected += counts.Expected
		total.Actual += counts.Actual
		if err != nil {
			return total, err
		}
		logger.Debug("archive extracted",
			logging.String("archive", filepath.Base(archive)),
			logging.Int("entries", counts.Expected),
			logging.Int("files", counts.Actual),
		)
	}

	if u.removeArchive && total.Complete() {
		for _, archive := range archives {
			if err := os.Remove(archive); err != nil {
				logging.WarnWithContext(logger, "archive removal failed", "archive_remove_failed",
					logging.String("archive", archive),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "the archive is removed with the unit's staging data after publish"),
					logging.String(logging.FieldImpact, "disk space held until cleanup"),
				)
			}
		}
	}
	return total, nil
}
