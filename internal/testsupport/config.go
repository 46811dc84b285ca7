// Package testsupport builds configs, stub programs, and archive fixtures for
// package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"ferry/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a unique temp directory. Every derived
// directory exists, admission is disabled, and notifications are off.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataRoot = base
	cfgVal.Paths.StagingDir = filepath.Join(base, "tmp")
	cfgVal.Paths.StateDir = filepath.Join(base, "logs")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.PublishDir = filepath.Join(base, "published")
	cfgVal.Dataset.Key = "71357"
	cfgVal.Admission.Enabled = false
	cfgVal.Transform.Workers = 2
	cfgVal.Logging.RetentionDays = 0

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithUnits sets the configured unit keys.
func WithUnits(units ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dataset.Units = append([]string(nil), units...)
	}
}

// WithLedgerBackend selects the ledger backend.
func WithLedgerBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ledger.Backend = backend
	}
}

// WithCopyTransform replaces the transform command with a stub that copies
// its input to its output.
func WithCopyTransform() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transform.Command = WriteScript(b.t, filepath.Join(b.baseDir, "bin"), "transform-stub", `cp "$1" "$2"`)
		b.cfg.Transform.Args = []string{"{input}", "{output}"}
	}
}

// WithFixtureFetch replaces the fetch command with a stub that copies
// <fixtures>/<unit>.zip into the unit's fetch directory. A missing fixture
// makes the stub exit non-zero.
func WithFixtureFetch(fixtures string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Fetch.Command = WriteScript(b.t, filepath.Join(b.baseDir, "bin"), "fetch-stub", `cp "$1/$2.zip" "$3/"`)
		b.cfg.Fetch.Args = []string{fixtures, "{unit}", "{dir}"}
	}
}

// WriteScript writes an executable shell script and returns its path.
func WriteScript(t testing.TB, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\nset -e\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.DataRoot
}
