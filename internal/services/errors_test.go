package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"ferry/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "fetch", "download", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"fetch", "download", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestKindMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrIntegrity, "unpack", "verify", "count mismatch", nil), services.KindIntegrity},
		{services.Wrap(services.ErrResourceExhausted, "fetch", "admission", "disk full", nil), services.KindResourceExhaustion},
		{services.Wrap(services.ErrFormat, "unpack", "open", "bad zip", nil), services.KindFormat},
		{services.Wrap(services.ErrFileSystem, "cleanup", "remove", "denied", nil), services.KindFileSystem},
		{services.Wrap(services.ErrConfiguration, "config", "", "missing", nil), services.KindConfiguration},
		{fmt.Errorf("outer: %w", services.Wrap(services.ErrValidation, "", "", "bad", nil)), services.KindValidation},
		{errors.New("exit status 1"), services.KindExternal},
	}
	for _, tc := range tests {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
