package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"ferry/internal/ledger"
	"ferry/internal/stage"
	"ferry/internal/testsupport"
)

func TestRunPublishesUnitAndRerunSkips(t *testing.T) {
	env := setupCLITestEnv(t, "49521")
	env.addFixture(t, "49521", 3)

	stdout, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, stdout, "1 of 1 completed")
	if got := countFiles(t, filepath.Join(env.cfg.Paths.PublishDir, "49521")); got != 6 {
		t.Fatalf("expected 6 published files, got %d", got)
	}

	stdout, _, err = runCLI(t, []string{"--json", "run"}, env.configPath)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	var summary struct {
		Completed []string `json:"completed"`
		Stages    []struct {
			Name      string `json:"name"`
			Succeeded int    `json:"succeeded"`
			Skipped   int    `json:"skipped"`
		} `json:"stages"`
	}
	if err := json.Unmarshal([]byte(stdout), &summary); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, stdout)
	}
	if len(summary.Completed) != 1 {
		t.Fatalf("expected unit to complete on rerun, got %+v", summary)
	}
	for _, st := range summary.Stages {
		if st.Skipped != 1 || st.Succeeded != 0 {
			t.Fatalf("expected %s to be skipped on rerun, got %+v", st.Name, st)
		}
	}
}

func TestRunStrictFailsWhenUnitFails(t *testing.T) {
	env := setupCLITestEnv(t, "49521", "49599")
	env.addFixture(t, "49521", 1)

	stdout, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err != nil {
		t.Fatalf("run without --strict should succeed: %v", err)
	}
	requireContains(t, stdout, "49599")
	requireContains(t, stdout, "Fetch")

	_, _, err = runCLI(t, []string{"run", "--strict", "--unit", "49599"}, env.configPath)
	if err == nil {
		t.Fatal("expected --strict run to fail")
	}
	requireContains(t, err.Error(), "1 failed unit")
}

func TestRunArtifactRequiresSingleUnit(t *testing.T) {
	env := setupCLITestEnv(t, "49521", "49522")
	archive := filepath.Join(t.TempDir(), "49521.zip")
	testsupport.WriteZip(t, archive, testsupport.DatasetZip(2))

	_, _, err := runCLI(t, []string{"run", "--artifact", archive}, env.configPath)
	if err == nil {
		t.Fatal("expected artifact run with two units to fail")
	}

	if _, _, err := runCLI(t, []string{"run", "--artifact", archive, "--unit", "49521"}, env.configPath); err != nil {
		t.Fatalf("artifact run: %v", err)
	}
	if got := countFiles(t, filepath.Join(env.cfg.Paths.PublishDir, "49521")); got != 4 {
		t.Fatalf("expected 4 published files, got %d", got)
	}
}

func TestStatusCountsLedgerEntries(t *testing.T) {
	env := setupCLITestEnv(t, "a", "b", "c")
	store := testsupport.MustOpenLedger(t, env.cfg, stage.Fetch)
	ctx := context.Background()
	if err := store.Record(ctx, "a", ledger.StatusSuccess, ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Record(ctx, "b", ledger.StatusFailed, "exit status 2"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	stdout, _, err := runCLI(t, []string{"--json", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var out struct {
		Units  int           `json:"units"`
		Stages []stageStatus `json:"stages"`
	}
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Units != 3 || len(out.Stages) != 4 {
		t.Fatalf("unexpected status %+v", out)
	}
	fetch := out.Stages[0]
	if fetch.Stage != stage.Fetch || fetch.Success != 1 || fetch.Failed != 1 || fetch.Pending != 2 {
		t.Fatalf("unexpected fetch status %+v", fetch)
	}
	if out.Stages[3].Pending != 3 {
		t.Fatalf("expected every unit pending for publish, got %+v", out.Stages[3])
	}

	stdout, _, err = runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, stdout, "Transform")
}

func TestLedgerShowAndReset(t *testing.T) {
	env := setupCLITestEnv(t, "49522")
	store := testsupport.MustOpenLedger(t, env.cfg, stage.Unpack)
	if err := store.Record(context.Background(), "49522", ledger.StatusFailed, "zip: not a valid zip file"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	stdout, _, err := runCLI(t, []string{"ledger", "show", "--failed"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger show: %v", err)
	}
	requireContains(t, stdout, "49522")
	requireContains(t, stdout, "not a valid zip file")

	if _, _, err := runCLI(t, []string{"ledger", "show", "--stage", "bogus"}, env.configPath); err == nil {
		t.Fatal("expected unknown stage to fail")
	}
	if _, _, err := runCLI(t, []string{"ledger", "reset", "--unit", "49522"}, env.configPath); err == nil {
		t.Fatal("expected reset without --stage to fail")
	}

	stdout, _, err = runCLI(t, []string{"ledger", "reset", "--stage", "unpack", "--unit", "49522", "--unit", "49523"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger reset: %v", err)
	}
	requireContains(t, stdout, "Reset unpack for unit 49522")
	requireContains(t, stdout, "No unpack entry for unit 49523")

	stdout, _, err = runCLI(t, []string{"--json", "ledger", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger show: %v", err)
	}
	var rows []ledgerRow
	if err := json.Unmarshal([]byte(stdout), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty ledgers after reset, got %+v", rows)
	}
}

func TestStagingListAndClean(t *testing.T) {
	env := setupCLITestEnv(t, "49521")
	unitDir := filepath.Join(env.cfg.Paths.StagingDir, stage.Unpack, "49521")
	testsupport.WriteFile(t, filepath.Join(unitDir, "images", "a.jpg"), 2048)

	stdout, _, err := runCLI(t, []string{"staging", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("staging list: %v", err)
	}
	requireContains(t, stdout, "49521")
	requireContains(t, stdout, "Unpack")

	stdout, _, err = runCLI(t, []string{"staging", "clean"}, env.configPath)
	if err != nil {
		t.Fatalf("staging clean: %v", err)
	}
	requireContains(t, stdout, "No staging directories to clean")

	stdout, _, err = runCLI(t, []string{"staging", "clean", "--all"}, env.configPath)
	if err != nil {
		t.Fatalf("staging clean --all: %v", err)
	}
	requireContains(t, stdout, "Removed 1 staging directories")
	if _, err := os.Stat(unitDir); !os.IsNotExist(err) {
		t.Fatalf("expected %s removed, stat err=%v", unitDir, err)
	}
}

func TestPreflightReportsMissingCommand(t *testing.T) {
	env := setupCLITestEnv(t, "49521")

	stdout, _, err := runCLI(t, []string{"preflight"}, env.configPath)
	if err != nil {
		t.Fatalf("preflight: %v\n%s", err, stdout)
	}
	requireContains(t, stdout, "Staging directory")

	env.cfg.Transform.Command = filepath.Join(t.TempDir(), "missing-converter")
	writeTestConfig(t, env.configPath, env.cfg)
	stdout, _, err = runCLI(t, []string{"preflight"}, env.configPath)
	if err == nil {
		t.Fatalf("expected preflight failure, output:\n%s", stdout)
	}
	requireContains(t, stdout, "ERROR")
}

func TestConfigInitAndValidate(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "ferry.toml")

	stdout, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, stdout, target)
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	env := setupCLITestEnv(t, "49521")
	stdout, _, err = runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, stdout, env.configPath)
	requireContains(t, stdout, "Configuration valid")
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	t.Setenv("FERRY_NTFY_TOPIC", "")
	env := setupCLITestEnv(t, "49521")
	stdout, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, stdout, "not configured")
}
