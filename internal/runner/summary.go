package runner

import (
	"context"
	"time"

	"ferry/internal/ledger"
	"ferry/internal/pipeline"
)

// FailedUnit names a unit that stopped at Stage during this run.
type FailedUnit struct {
	Key   string
	Stage string
	Error string
}

// Summary describes a finished run.
type Summary struct {
	RunID       string
	Units       int
	Fed         int
	Completed   []string
	Failed      []FailedUnit
	Interrupted bool
	// CleanupFailures counts published units whose staging data was not
	// fully removed.
	CleanupFailures int
	Duration        time.Duration
	Report          pipeline.Report
}

// OK reports whether every fed unit completed.
func (s Summary) OK() bool {
	return len(s.Failed) == 0 && !s.Interrupted
}

func summarize(ctx context.Context, runID string, units int, report pipeline.Report, stores map[string]ledger.Store) Summary {
	summary := Summary{
		RunID:       runID,
		Units:       units,
		Fed:         report.Fed,
		Completed:   report.Completed,
		Interrupted: report.Interrupted,
		Duration:    report.Duration,
		Report:      report,
	}
	for _, st := range report.Stages {
		store := stores[st.Name]
		for _, key := range st.FailedUnits {
			failed := FailedUnit{Key: key, Stage: st.Name}
			if store != nil {
				if rec, ok, err := store.Get(ctx, key); err == nil && ok {
					failed.Error = rec.Message()
				}
			}
			summary.Failed = append(summary.Failed, failed)
		}
	}
	return summary
}
