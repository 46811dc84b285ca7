// Package deps reports whether the external programs a run depends on can be
// found.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"ferry/internal/config"
)

// Requirement names one external program.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the programs cfg invokes. The fetch command is omitted
// when skipFetch is set, which is the case for artifact runs.
func Requirements(cfg *config.Config, skipFetch bool) []Requirement {
	if cfg == nil {
		return nil
	}
	var reqs []Requirement
	if !skipFetch {
		reqs = append(reqs, Requirement{
			Name:        "Fetch",
			Command:     cfg.Fetch.Command,
			Description: "Downloads unit archives",
		})
	}
	if cfg.Admission.Enabled && !skipFetch {
		reqs = append(reqs, Requirement{
			Name:        "Listing",
			Command:     cfg.Admission.ListingCommand,
			Description: "Reports remote archive sizes for the free space check",
			Optional:    true,
		})
	}
	reqs = append(reqs, Requirement{
		Name:        "Transform",
		Command:     cfg.Transform.Command,
		Description: "Converts images",
	})
	if cfg.Publish.Mode == config.PublishModeCommand {
		reqs = append(reqs, Requirement{
			Name:        "Publish",
			Command:     cfg.Publish.Command,
			Description: "Uploads transformed files",
		})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Path = path
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Missing returns the required statuses that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			out = append(out, status)
		}
	}
	return out
}
