package testsupport

import (
	"testing"

	"ferry/internal/config"
	"ferry/internal/ledger"
)

// MustOpenLedger opens the ledger of stageName for cfg and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config, stageName string) ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg.Ledger.Backend, cfg.Paths.StateDir, stageName)
	if err != nil {
		t.Fatalf("ledger.Open(%s): %v", stageName, err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
