package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"ferry/internal/config"
	"ferry/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	fixtures   string
}

// setupCLITestEnv writes a config whose fetch and transform commands are
// shell stubs, so "ferry run" exercises the real command runner.
func setupCLITestEnv(t *testing.T, units ...string) *cliTestEnv {
	t.Helper()

	fixtures := t.TempDir()
	cfg := testsupport.NewConfig(t,
		testsupport.WithUnits(units...),
		testsupport.WithFixtureFetch(fixtures),
		testsupport.WithCopyTransform(),
	)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "ferry.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, fixtures: fixtures}
}

func (e *cliTestEnv) addFixture(t *testing.T, unit string, images int) {
	t.Helper()
	testsupport.WriteZip(t, filepath.Join(e.fixtures, unit+".zip"), testsupport.DatasetZip(images))
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func countFiles(t *testing.T, root string) int {
	t.Helper()
	count := 0
	err := filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("walk %s: %v", root, err)
	}
	return count
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
