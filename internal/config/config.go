package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration. Empty staging/state/log/publish
// directories are derived from DataRoot during normalization.
type Paths struct {
	DataRoot   string `toml:"data_root"`
	StagingDir string `toml:"staging_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	PublishDir string `toml:"publish_dir"`
}

// Dataset identifies the remote dataset and the ordered unit keys to process.
type Dataset struct {
	Key   string   `toml:"key"`
	Units []string `toml:"units"`
}

// Fetch contains the download command used to materialize a unit locally.
// Args support the {dataset}, {unit}, and {dir} placeholders plus $ENV
// references.
type Fetch struct {
	Command        string   `toml:"command"`
	Args           []string `toml:"args"`
	ArchivePattern string   `toml:"archive_pattern"`
}

// Admission contains the pre-flight free space check settings.
type Admission struct {
	Enabled        bool     `toml:"enabled"`
	SafetyFactor   float64  `toml:"safety_factor"`
	ListingCommand string   `toml:"listing_command"`
	ListingArgs    []string `toml:"listing_args"`
}

// Unpack contains archive extraction settings.
type Unpack struct {
	RemoveArchive bool `toml:"remove_archive"`
}

// Transform contains the per-image conversion command. Args support the
// {input}, {output}, {size}, and {quality} placeholders.
type Transform struct {
	Command         string   `toml:"command"`
	Args            []string `toml:"args"`
	OutputExt       string   `toml:"output_ext"`
	ImageExtensions []string `toml:"image_extensions"`
	CopyExtensions  []string `toml:"copy_extensions"`
	TargetSize      int      `toml:"target_size"`
	Quality         int      `toml:"quality"`
	Workers         int      `toml:"workers"`
}

// Publish contains sink settings. Mode "directory" copies into
// paths.publish_dir; mode "command" runs Command once per file with the
// {file}, {object}, and {unit} placeholders.
type Publish struct {
	Mode    string   `toml:"mode"`
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
	Prefix  string   `toml:"prefix"`
}

// Pipeline contains bounded queue capacities between stage workers.
type Pipeline struct {
	UnitQueue      int `toml:"unit_queue"`
	FetchQueue     int `toml:"fetch_queue"`
	UnpackQueue    int `toml:"unpack_queue"`
	TransformQueue int `toml:"transform_queue"`
	DoneQueue      int `toml:"done_queue"`
}

// Ledger selects the unit status store backend.
type Ledger struct {
	Backend string `toml:"backend"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Run            bool   `toml:"run"`
	Errors         bool   `toml:"errors"`
}

// Config encapsulates all configuration values for ferry.
//
// Configuration sections by subsystem:
//   - Paths: data root plus staging, state, log, and publish directories
//   - Dataset: remote dataset key and unit keys
//   - Fetch: download command
//   - Admission: free space check before downloads
//   - Unpack: archive extraction
//   - Transform: per-image conversion command
//   - Publish: sink mode and upload command
//   - Pipeline: queue capacities between stage workers
//   - Ledger: unit status store backend
//   - Logging: log format, level, and retention
//   - Notifications: ntfy push notification settings
type Config struct {
	Paths         Paths         `toml:"paths"`
	Dataset       Dataset       `toml:"dataset"`
	Fetch         Fetch         `toml:"fetch"`
	Admission     Admission     `toml:"admission"`
	Unpack        Unpack        `toml:"unpack"`
	Transform     Transform     `toml:"transform"`
	Publish       Publish       `toml:"publish"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Ledger        Ledger        `toml:"ledger"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ferry.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a pipeline run writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataRoot, c.Paths.StagingDir, c.Paths.StateDir, c.Paths.LogDir}
	if c.Publish.Mode == PublishModeDirectory {
		dirs = append(dirs, c.Paths.PublishDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Units returns a copy of the configured unit keys.
func (c *Config) Units() []string {
	return append([]string(nil), c.Dataset.Units...)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
