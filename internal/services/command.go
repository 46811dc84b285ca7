package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// commandContext is swapped in tests.
var commandContext = exec.CommandContext

// CommandRunner executes an external program in dir and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// RunnerFunc adapts a function to CommandRunner.
type RunnerFunc func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

func (f RunnerFunc) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	return f(ctx, dir, name, args...)
}

// ExecRunner runs commands with os/exec. Failures include the tail of stderr.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := commandContext(ctx, name, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if detail := tail(stderr.String(), 512); detail != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, detail)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func tail(text string, limit int) string {
	text = strings.TrimSpace(text)
	if len(text) <= limit {
		return text
	}
	return "..." + text[len(text)-limit:]
}

// ExpandArgs resolves $VAR references from the environment and then
// substitutes {name} placeholders from vars. Placeholder values are never
// re-expanded.
func ExpandArgs(args []string, vars map[string]string) []string {
	out := make([]string, len(args))
	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, "{"+key+"}", value)
	}
	replacer := strings.NewReplacer(pairs...)
	for i, arg := range args {
		out[i] = replacer.Replace(os.ExpandEnv(arg))
	}
	return out
}
