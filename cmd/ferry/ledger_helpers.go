package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"ferry/internal/config"
	"ferry/internal/ledger"
	"ferry/internal/stage"
)

type ledgerRow struct {
	Stage     string `json:"stage"`
	Unit      string `json:"unit"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// withLedger opens one stage ledger for the duration of fn.
func withLedger(cfg *config.Config, stageName string, fn func(ledger.Store) error) error {
	store, err := ledger.Open(cfg.Ledger.Backend, cfg.Paths.StateDir, stageName)
	if err != nil {
		if errors.Is(err, ledger.ErrLocked) {
			return fmt.Errorf("%s ledger is in use by a running pipeline: %w", stageName, err)
		}
		return fmt.Errorf("open %s ledger: %w", stageName, err)
	}
	defer store.Close()
	return fn(store)
}

// snapshotStages reads every requested stage ledger and returns rows ordered
// by stage then unit.
func snapshotStages(ctx context.Context, cfg *config.Config, stages []string) ([]ledgerRow, error) {
	var rows []ledgerRow
	for _, name := range stages {
		err := withLedger(cfg, name, func(store ledger.Store) error {
			snapshot, err := store.Snapshot(ctx)
			if err != nil {
				return fmt.Errorf("read %s ledger: %w", name, err)
			}
			keys := make([]string, 0, len(snapshot))
			for key := range snapshot {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				rec := snapshot[key]
				rows = append(rows, ledgerRow{
					Stage:     name,
					Unit:      key,
					Status:    string(rec.Status),
					Error:     rec.Message(),
					Timestamp: rec.Timestamp,
				})
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func resolveStages(name string) ([]string, error) {
	if name == "" {
		return stage.Names(), nil
	}
	if stage.Valid(name) {
		return []string{name}, nil
	}
	return nil, fmt.Errorf("unknown stage %q (expected one of %v)", name, stage.Names())
}
