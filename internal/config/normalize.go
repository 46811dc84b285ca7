package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDataset()
	c.normalizeTransform()
	c.normalizePublish()
	c.normalizeLedger()
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataRoot) == "" {
		c.Paths.DataRoot = defaultDataRoot
	}
	if c.Paths.DataRoot, err = expandPath(c.Paths.DataRoot); err != nil {
		return fmt.Errorf("paths.data_root: %w", err)
	}
	derived := []struct {
		name   string
		value  *string
		subdir string
	}{
		{"paths.staging_dir", &c.Paths.StagingDir, defaultStagingSubdir},
		{"paths.state_dir", &c.Paths.StateDir, defaultStateSubdir},
		{"paths.log_dir", &c.Paths.LogDir, defaultStateSubdir},
		{"paths.publish_dir", &c.Paths.PublishDir, defaultPublishSubdir},
	}
	for _, entry := range derived {
		if strings.TrimSpace(*entry.value) == "" {
			*entry.value = filepath.Join(c.Paths.DataRoot, entry.subdir)
		}
		if *entry.value, err = expandPath(*entry.value); err != nil {
			return fmt.Errorf("%s: %w", entry.name, err)
		}
	}
	return nil
}

func (c *Config) normalizeDataset() {
	c.Dataset.Key = strings.TrimSpace(c.Dataset.Key)
	if c.Dataset.Key == "" {
		if value, ok := os.LookupEnv(datasetKeyEnv); ok {
			c.Dataset.Key = strings.TrimSpace(value)
		}
	}
	c.Dataset.Units = dedupeUnits(c.Dataset.Units)
	c.Fetch.Command = strings.TrimSpace(c.Fetch.Command)
	c.Fetch.ArchivePattern = strings.TrimSpace(c.Fetch.ArchivePattern)
	if c.Fetch.ArchivePattern == "" {
		c.Fetch.ArchivePattern = defaultArchivePattern
	}
	c.Admission.ListingCommand = strings.TrimSpace(c.Admission.ListingCommand)
	if c.Admission.SafetyFactor == 0 {
		c.Admission.SafetyFactor = defaultSafetyFactor
	}
}

func (c *Config) normalizeTransform() {
	c.Transform.Command = strings.TrimSpace(c.Transform.Command)
	c.Transform.OutputExt = normalizeExtension(c.Transform.OutputExt)
	if c.Transform.OutputExt == "" {
		c.Transform.OutputExt = defaultTransformOutputExt
	}
	c.Transform.ImageExtensions = normalizeExtensions(c.Transform.ImageExtensions)
	c.Transform.CopyExtensions = normalizeExtensions(c.Transform.CopyExtensions)
}

func (c *Config) normalizePublish() {
	c.Publish.Mode = strings.ToLower(strings.TrimSpace(c.Publish.Mode))
	if c.Publish.Mode == "" {
		c.Publish.Mode = PublishModeDirectory
	}
	c.Publish.Command = strings.TrimSpace(c.Publish.Command)
	c.Publish.Prefix = strings.Trim(strings.TrimSpace(c.Publish.Prefix), "/")
}

func (c *Config) normalizeLedger() {
	c.Ledger.Backend = strings.ToLower(strings.TrimSpace(c.Ledger.Backend))
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = LedgerBackendJSON
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text", "pretty":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv(notificationTopicEnv); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func dedupeUnits(units []string) []string {
	if len(units) == 0 {
		return nil
	}
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

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	seen := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = normalizeExtension(ext)
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	return out
}
