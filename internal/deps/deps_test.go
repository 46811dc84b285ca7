package deps

import (
	"os"
	"path/filepath"
	"testing"

	"ferry/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Path != present || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for unset command: %q", results[2].Detail)
	}
	if missing := Missing(results); len(missing) != 2 {
		t.Fatalf("expected 2 missing requirements, got %d", len(missing))
	}
}

func TestRequirementsFollowConfig(t *testing.T) {
	cfg := config.Default()
	names := func(reqs []Requirement) []string {
		out := make([]string, 0, len(reqs))
		for _, req := range reqs {
			out = append(out, req.Name)
		}
		return out
	}

	got := names(Requirements(&cfg, false))
	want := []string{"Fetch", "Listing", "Transform"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	cfg.Publish.Mode = config.PublishModeCommand
	cfg.Publish.Command = "rclone"
	got = names(Requirements(&cfg, true))
	if len(got) != 2 || got[0] != "Transform" || got[1] != "Publish" {
		t.Fatalf("artifact run with command sink: unexpected requirements %v", got)
	}

	if Requirements(nil, false) != nil {
		t.Fatal("expected nil requirements for nil config")
	}
}
