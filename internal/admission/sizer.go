package admission

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"ferry/internal/services"
)

// ErrSizeUnknown reports that a Sizer has no size for the unit.
var ErrSizeUnknown = errors.New("unit size unknown")

// Sizer resolves a unit key to a remote size token such as "500 MB".
type Sizer interface {
	Size(ctx context.Context, key string) (string, error)
}

// ListingSizer runs the dataset listing command once and looks units up in
// the parsed rows. A failed listing is not cached.
type ListingSizer struct {
	Runner  services.CommandRunner
	Command string
	Args    []string

	mu      sync.Mutex
	entries []ListingEntry
	loaded  bool
}

// NewListingSizer builds a ListingSizer whose args have already been expanded.
func NewListingSizer(runner services.CommandRunner, command string, args []string) *ListingSizer {
	if runner == nil {
		runner = services.ExecRunner{}
	}
	return &ListingSizer{Runner: runner, Command: command, Args: args}
}

func (s *ListingSizer) Size(ctx context.Context, key string) (string, error) {
	entries, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	entry, ok := FindSize(entries, key)
	if !ok {
		return "", fmt.Errorf("%w: %s not in listing", ErrSizeUnknown, key)
	}
	return entry.Size, nil
}

func (s *ListingSizer) load(ctx context.Context) ([]ListingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.entries, nil
	}
	out, err := s.Runner.Run(ctx, "", s.Command, s.Args...)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "admission", "list", "dataset listing failed", err)
	}
	entries, err := ParseListing(string(out))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "admission", "list", "dataset listing unreadable", err)
	}
	s.entries = entries
	s.loaded = true
	return s.entries, nil
}

// FileSizer reports the size of local artifacts, keyed by unit.
type FileSizer struct {
	Paths map[string]string
}

func (s FileSizer) Size(_ context.Context, key string) (string, error) {
	path, ok := s.Paths[key]
	if !ok {
		return "", fmt.Errorf("%w: no artifact for %s", ErrSizeUnknown, key)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(info.Size(), 10), nil
}
