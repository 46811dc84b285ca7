package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"ferry/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed || result.Detail == "" {
		t.Fatalf("expected failure with detail for missing dir, got %+v", result)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if CheckDirectoryAccess("test", f).Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if RunAll(nil, false) != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReportsMissingCommands(t *testing.T) {
	base := t.TempDir()
	binDir := filepath.Join(base, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(binDir, "convert-stub"), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", binDir)

	cfg := config.Default()
	cfg.Paths.StagingDir = t.TempDir()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.PublishDir = t.TempDir()
	cfg.Fetch.Command = "missing-fetch-tool"
	cfg.Admission.ListingCommand = "missing-fetch-tool"
	cfg.Transform.Command = "convert-stub"

	results := RunAll(&cfg, false)
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d: %+v", len(results), results)
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Fetch command" {
		t.Fatalf("expected only the fetch command to fail, got %+v", failed)
	}

	artifact := Failed(RunAll(&cfg, true))
	if len(artifact) != 0 {
		t.Fatalf("artifact runs must not require the fetch command, got %+v", artifact)
	}
}
