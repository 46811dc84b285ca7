package preflight

import (
	"fmt"

	"ferry/internal/config"
	"ferry/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes all applicable preflight checks for the given config.
// artifactRun drops the checks that only matter for remote downloads.
func RunAll(cfg *config.Config, artifactRun bool) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if cfg.Publish.Mode == config.PublishModeDirectory {
		results = append(results, CheckDirectoryAccess("Publish directory", cfg.Paths.PublishDir))
	}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg, artifactRun)) {
		results = append(results, fromStatus(status))
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			out = append(out, r)
		}
	}
	return out
}

func fromStatus(status deps.Status) Result {
	result := Result{
		Name:     status.Name + " command",
		Passed:   status.Available,
		Optional: status.Optional,
	}
	if status.Available {
		result.Detail = status.Path
	} else {
		result.Detail = fmt.Sprintf("%s (%s)", status.Detail, status.Description)
	}
	return result
}
