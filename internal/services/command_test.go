package services

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
)

func TestExpandArgs(t *testing.T) {
	t.Setenv("FERRY_TEST_KEY", "secret")
	got := ExpandArgs(
		[]string{"-datasetkey", "{dataset}", "-filekey", "{unit}", "-key", "$FERRY_TEST_KEY", "{size}:{size}"},
		map[string]string{"dataset": "71357", "unit": "66065", "size": "384"},
	)
	want := []string{"-datasetkey", "71357", "-filekey", "66065", "-key", "secret", "384:384"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("ExpandArgs = %v, want %v", got, want)
	}
}

func TestExecRunnerIncludesStderr(t *testing.T) {
	original := commandContext
	t.Cleanup(func() { commandContext = original })
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", "echo partial; echo 'quota exceeded' >&2; exit 3")
	}

	out, err := ExecRunner{}.Run(context.Background(), t.TempDir(), "aihubshell")
	if err == nil {
		t.Fatal("expected error")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected exit error, got %v", err)
	}
	if !strings.Contains(err.Error(), "quota exceeded") || !strings.HasPrefix(err.Error(), "aihubshell:") {
		t.Fatalf("unexpected error text %q", err)
	}
	if strings.TrimSpace(string(out)) != "partial" {
		t.Fatalf("unexpected stdout %q", out)
	}
}

func TestExecRunnerReturnsStdout(t *testing.T) {
	original := commandContext
	t.Cleanup(func() { commandContext = original })
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", "pwd")
	}
	dir := t.TempDir()
	out, err := ExecRunner{}.Run(context.Background(), dir, "pwd")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(string(out), dir) {
		t.Fatalf("expected command to run in %s, got %q", dir, out)
	}
}
