package pipeline

import "time"

// StageStats counts what one worker did during a run.
type StageStats struct {
	Name       string
	Received   int
	Succeeded  int
	Skipped    int
	Failed     int
	Duplicates int
	// FailedUnits lists unit keys whose handler failed, in arrival order.
	FailedUnits []string
}

// Report summarizes a completed graph run.
type Report struct {
	Fed         int
	Completed   []string
	Stages      []StageStats
	Interrupted bool
	Duration    time.Duration
}

// Failed returns the distinct unit keys that failed at any stage.
func (r Report) Failed() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, st := range r.Stages {
		for _, key := range st.FailedUnits {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, key)
		}
	}
	return out
}

// Stage returns the stats for name.
func (r Report) Stage(name string) (StageStats, bool) {
	for _, st := range r.Stages {
		if st.Name == name {
			return st, true
		}
	}
	return StageStats{}, false
}
