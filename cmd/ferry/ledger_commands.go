package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ferry/internal/ledger"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and repair per-stage unit ledgers",
	}

	ledgerCmd.AddCommand(newLedgerShowCommand(ctx))
	ledgerCmd.AddCommand(newLedgerResetCommand(ctx))

	return ledgerCmd
}

func newLedgerShowCommand(ctx *commandContext) *cobra.Command {
	var stageName string
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List ledger entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stages, err := resolveStages(strings.TrimSpace(stageName))
			if err != nil {
				return err
			}
			rows, err := snapshotStages(cmd.Context(), cfg, stages)
			if err != nil {
				return err
			}
			if failedOnly {
				filtered := rows[:0]
				for _, row := range rows {
					if row.Status == string(ledger.StatusFailed) {
						filtered = append(filtered, row)
					}
				}
				rows = filtered
			}

			if ctx.JSONMode() {
				if rows == nil {
					rows = []ledgerRow{}
				}
				return writeJSON(cmd, rows)
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No ledger entries found")
				return nil
			}
			tableRows := make([][]string, 0, len(rows))
			for _, row := range rows {
				tableRows = append(tableRows, []string{
					stageLabel(row.Stage),
					row.Unit,
					row.Status,
					formatAge(ledger.Record{Timestamp: row.Timestamp}.Time()),
					row.Error,
				})
			}
			fmt.Fprint(out, renderTable(
				[]string{"Stage", "Unit", "Status", "Age", "Error"},
				tableRows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&stageName, "stage", "s", "", "Only show this stage (fetch, unpack, transform, publish)")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only show FAILED entries")
	return cmd
}

func newLedgerResetCommand(ctx *commandContext) *cobra.Command {
	var stageName string
	var units []string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove unit entries so the next run repeats that stage",
		Long: `Remove ledger entries for the given units.

A FAILED entry is retried on the next run anyway; resetting a SUCCESS entry
forces the stage to run again. Resetting fetch is the way to re-download a
unit whose archive turned out to be corrupt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			name := strings.TrimSpace(stageName)
			if name == "" {
				return fmt.Errorf("--stage is required")
			}
			stages, err := resolveStages(name)
			if err != nil {
				return err
			}
			keys := append(append([]string(nil), units...), args...)
			if len(keys) == 0 {
				return fmt.Errorf("at least one --unit is required")
			}

			var removed, missing []string
			err = withLedger(cfg, stages[0], func(store ledger.Store) error {
				for _, key := range keys {
					key = strings.TrimSpace(key)
					if key == "" {
						continue
					}
					existed, err := store.Reset(cmd.Context(), key)
					if err != nil {
						return fmt.Errorf("reset %s: %w", key, err)
					}
					if existed {
						removed = append(removed, key)
					} else {
						missing = append(missing, key)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}

			if ctx.JSONMode() {
				if removed == nil {
					removed = []string{}
				}
				if missing == nil {
					missing = []string{}
				}
				return writeJSON(cmd, map[string]any{
					"stage":   stages[0],
					"removed": removed,
					"missing": missing,
				})
			}
			out := cmd.OutOrStdout()
			for _, key := range removed {
				fmt.Fprintf(out, "Reset %s for unit %s\n", stages[0], key)
			}
			for _, key := range missing {
				fmt.Fprintf(out, "No %s entry for unit %s\n", stages[0], key)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&stageName, "stage", "s", "", "Stage ledger to modify")
	cmd.Flags().StringArrayVarP(&units, "unit", "u", nil, "Unit key to reset (repeatable)")
	return cmd
}
