package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateAdmission(); err != nil {
		return err
	}
	if err := c.validateTransform(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateLedger(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validateFetch() error {
	if c.Fetch.Command == "" {
		return errors.New("fetch.command must be set")
	}
	if !strings.Contains(c.Fetch.ArchivePattern, "*") && !strings.Contains(c.Fetch.ArchivePattern, "?") {
		return fmt.Errorf("fetch.archive_pattern %q must be a glob", c.Fetch.ArchivePattern)
	}
	return nil
}

func (c *Config) validateAdmission() error {
	if c.Admission.SafetyFactor < minSafetyFactor || c.Admission.SafetyFactor > maxSafetyFactor {
		return fmt.Errorf("admission.safety_factor must be between %.1f and %.1f", minSafetyFactor, maxSafetyFactor)
	}
	if c.Admission.Enabled && c.Admission.ListingCommand == "" {
		return errors.New("admission.listing_command must be set when admission.enabled is true")
	}
	return nil
}

func (c *Config) validateTransform() error {
	if c.Transform.Command == "" {
		return errors.New("transform.command must be set")
	}
	if len(c.Transform.ImageExtensions) == 0 {
		return errors.New("transform.image_extensions must list at least one extension")
	}
	if err := ensurePositiveMap(map[string]int{
		"transform.target_size": c.Transform.TargetSize,
		"transform.workers":     c.Transform.Workers,
	}); err != nil {
		return err
	}
	if c.Transform.Quality < 0 || c.Transform.Quality > 100 {
		return errors.New("transform.quality must be between 0 and 100")
	}
	return nil
}

func (c *Config) validatePublish() error {
	switch c.Publish.Mode {
	case PublishModeDirectory:
		return nil
	case PublishModeCommand:
		if c.Publish.Command == "" {
			return errors.New("publish.command must be set when publish.mode is \"command\"")
		}
		return nil
	default:
		return fmt.Errorf("publish.mode %q is not supported (use %q or %q)", c.Publish.Mode, PublishModeDirectory, PublishModeCommand)
	}
}

func (c *Config) validatePipeline() error {
	return ensurePositiveMap(map[string]int{
		"pipeline.unit_queue":      c.Pipeline.UnitQueue,
		"pipeline.fetch_queue":     c.Pipeline.FetchQueue,
		"pipeline.unpack_queue":    c.Pipeline.UnpackQueue,
		"pipeline.transform_queue": c.Pipeline.TransformQueue,
		"pipeline.done_queue":      c.Pipeline.DoneQueue,
	})
}

func (c *Config) validateLedger() error {
	switch c.Ledger.Backend {
	case LedgerBackendJSON, LedgerBackendSQLite:
		return nil
	default:
		return fmt.Errorf("ledger.backend %q is not supported (use %q or %q)", c.Ledger.Backend, LedgerBackendJSON, LedgerBackendSQLite)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (use \"console\" or \"json\")", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
	}
	return nil
}

// ValidateForRun reports problems that only matter when a pipeline run is
// about to start, such as an empty unit list.
func (c *Config) ValidateForRun(units []string, artifactOverride bool) error {
	if len(units) == 0 {
		return errors.New("no units to process; set dataset.units or pass --unit")
	}
	for _, unit := range units {
		if err := validateUnitKey(unit); err != nil {
			return err
		}
	}
	if !artifactOverride && c.Dataset.Key == "" && argsReference(c.Fetch.Args, "{dataset}") {
		return fmt.Errorf("dataset.key is required (set it in the config or %s)", datasetKeyEnv)
	}
	return nil
}

// validateUnitKey rejects keys that cannot name a staging directory
// one-to-one.
func validateUnitKey(unit string) error {
	switch {
	case strings.TrimSpace(unit) == "", unit == ".", unit == "..":
		return fmt.Errorf("unit key %q is not a valid directory name", unit)
	case strings.ContainsAny(unit, `/\`):
		return fmt.Errorf("unit key %q must not contain path separators", unit)
	}
	return nil
}

func argsReference(args []string, placeholder string) bool {
	for _, arg := range args {
		if strings.Contains(arg, placeholder) {
			return true
		}
	}
	return false
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
