package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ferry/internal/ledger"
	"ferry/internal/stage"
)

type stageStatus struct {
	Stage   string `json:"stage"`
	Success int    `json:"success"`
	Failed  int    `json:"failed"`
	Pending int    `json:"pending"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-stage ledger totals for the configured units",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rows, err := snapshotStages(cmd.Context(), cfg, stage.Names())
			if err != nil {
				return err
			}
			statuses := summarizeStages(rows, cfg.Units())

			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{
					"dataset": cfg.Dataset.Key,
					"units":   len(cfg.Units()),
					"stages":  statuses,
				})
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Dataset "+cfg.Dataset.Key, colorize) {
				fmt.Fprintln(out, line)
			}
			tableRows := make([][]string, 0, len(statuses))
			for _, st := range statuses {
				tableRows = append(tableRows, []string{
					stageLabel(st.Stage),
					fmt.Sprintf("%d", st.Success),
					fmt.Sprintf("%d", st.Failed),
					fmt.Sprintf("%d", st.Pending),
				})
			}
			fmt.Fprint(out, renderTable(
				[]string{"Stage", "Success", "Failed", "Pending"},
				tableRows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
}

// summarizeStages counts ledger entries per stage. Pending is the number of
// configured units with no SUCCESS record for the stage.
func summarizeStages(rows []ledgerRow, units []string) []stageStatus {
	index := make(map[string]int, len(stage.Names()))
	statuses := make([]stageStatus, 0, len(stage.Names()))
	for i, name := range stage.Names() {
		index[name] = i
		statuses = append(statuses, stageStatus{Stage: name})
	}
	done := make(map[string]map[string]bool, len(statuses))
	for _, row := range rows {
		i, ok := index[row.Stage]
		if !ok {
			continue
		}
		switch ledger.Status(row.Status) {
		case ledger.StatusSuccess:
			statuses[i].Success++
			if done[row.Stage] == nil {
				done[row.Stage] = make(map[string]bool)
			}
			done[row.Stage][row.Unit] = true
		case ledger.StatusFailed:
			statuses[i].Failed++
		}
	}
	for i := range statuses {
		for _, unit := range units {
			if !done[statuses[i].Stage][unit] {
				statuses[i].Pending++
			}
		}
	}
	return statuses
}
