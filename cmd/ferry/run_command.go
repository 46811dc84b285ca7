package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ferry/internal/logging"
	"ferry/internal/runner"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var units []string
	var artifact string
	var strict bool
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, unpack, transform, and publish the configured units",
		Long: `Process every configured unit through fetch, unpack, transform, and publish.

Units already recorded as SUCCESS for a stage skip that stage, so an
interrupted or partially failed run can be repeated safely. Use --unit to
process a subset and --artifact to stage a local archive for a single unit
instead of downloading it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			r := runner.New(cfg, logger)
			summary, err := r.Run(cmd.Context(), runner.Options{
				Units:         units,
				Artifact:      strings.TrimSpace(artifact),
				SkipPreflight: skipPreflight,
			})
			if err != nil {
				if errors.Is(err, runner.ErrRunActive) {
					return fmt.Errorf("%w (lock: %s)", err, runner.LockFileName)
				}
				return err
			}

			if ctx.JSONMode() {
				if err := writeJSON(cmd, runSummaryJSON(summary)); err != nil {
					return err
				}
			} else {
				printRunSummary(cmd.OutOrStdout(), summary, shouldColorize(cmd.OutOrStdout()))
			}

			if strict && !summary.OK() {
				return fmt.Errorf("run finished with %d failed unit(s)", len(summary.Failed))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&units, "unit", "u", nil, "Unit key to process (repeatable; overrides dataset.units)")
	cmd.Flags().StringVar(&artifact, "artifact", "", "Local archive to stage for the single --unit instead of downloading")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any unit fails")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip directory and command checks")
	return cmd
}

func printRunSummary(out io.Writer, summary runner.Summary, colorize bool) {
	for _, line := range renderSectionHeader("Run "+summary.RunID, colorize) {
		fmt.Fprintln(out, line)
	}

	rows := make([][]string, 0, len(summary.Report.Stages))
	for _, st := range summary.Report.Stages {
		rows = append(rows, []string{
			stageLabel(st.Name),
			fmt.Sprintf("%d", st.Succeeded),
			fmt.Sprintf("%d", st.Skipped),
			fmt.Sprintf("%d", st.Failed),
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"Stage", "Succeeded", "Skipped", "Failed"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	))

	kind := statusOK
	message := fmt.Sprintf("%d of %d completed in %s", len(summary.Completed), summary.Units, summary.Duration.Round(time.Millisecond))
	switch {
	case summary.Interrupted:
		kind = statusWarn
		message += " (interrupted)"
	case len(summary.Failed) > 0:
		kind = statusError
	}
	fmt.Fprintln(out, renderStatusLine("Units", kind, message, colorize))
	if summary.CleanupFailures > 0 {
		fmt.Fprintln(out, renderStatusLine("Cleanup", statusWarn,
			fmt.Sprintf("%d unit(s) left staging data behind", summary.CleanupFailures), colorize))
	}
	for _, failed := range summary.Failed {
		label := failed.Key
		detail := stageLabel(failed.Stage)
		if failed.Error != "" {
			detail += ": " + failed.Error
		}
		fmt.Fprintln(out, renderStatusLine(label, statusError, detail, colorize))
	}
}

func runSummaryJSON(summary runner.Summary) map[string]any {
	failed := make([]map[string]string, 0, len(summary.Failed))
	for _, f := range summary.Failed {
		failed = append(failed, map[string]string{"unit": f.Key, "stage": f.Stage, "error": f.Error})
	}
	stages := make([]map[string]any, 0, len(summary.Report.Stages))
	for _, st := range summary.Report.Stages {
		stages = append(stages, map[string]any{
			"name":      st.Name,
			"succeeded": st.Succeeded,
			"skipped":   st.Skipped,
			"failed":    st.Failed,
		})
	}
	completed := summary.Completed
	if completed == nil {
		completed = []string{}
	}
	return map[string]any{
		"run_id":           summary.RunID,
		"units":            summary.Units,
		"fed":              summary.Fed,
		"completed":        completed,
		"failed":           failed,
		"interrupted":      summary.Interrupted,
		"cleanup_failures": summary.CleanupFailures,
		"duration_seconds": summary.Duration.Seconds(),
		"stages":           stages,
	}
}
