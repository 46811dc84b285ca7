package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ferry/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	stagingCmd := &cobra.Command{
		Use:   "staging",
		Short: "Manage staging directories",
	}

	stagingCmd.AddCommand(newStagingListCommand(ctx))
	stagingCmd.AddCommand(newStagingCleanCommand(ctx))

	return stagingCmd
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List per-unit staging directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			layout := ctx.layout()

			dirs, err := staging.ListDirectories(layout)
			if err != nil {
				return fmt.Errorf("list staging directories: %w", err)
			}

			var totalSize int64
			for _, dir := range dirs {
				totalSize += dir.Size
			}

			if ctx.JSONMode() {
				if dirs == nil {
					dirs = []staging.DirInfo{}
				}
				return writeJSON(cmd, map[string]any{
					"staging_dir":      layout.Root,
					"directories":      dirs,
					"total_size_bytes": totalSize,
				})
			}

			out := cmd.OutOrStdout()
			if len(dirs) == 0 {
				fmt.Fprintln(out, "No staging directories found")
				return nil
			}

			fmt.Fprintf(out, "Staging directory: %s\n\n", layout.Root)
			rows := make([][]string, 0, len(dirs))
			for _, dir := range dirs {
				rows = append(rows, []string{
					stageLabel(dir.Stage),
					dir.Unit,
					formatAge(dir.ModTime),
					fmt.Sprintf("%d", dir.Files),
					formatBytes(dir.Size),
				})
			}
			fmt.Fprint(out, renderTable(
				[]string{"Stage", "Unit", "Age", "Files", "Size"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))
			fmt.Fprintf(out, "\nTotal: %d directories, %s\n", len(dirs), formatBytes(totalSize))
			return nil
		},
	}
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var maxAge time.Duration
	var cleanAll bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale staging directories",
		Long: `Remove unit directories under the staging root that have not been modified
within --max-age.

Staging data left behind by failed or interrupted runs is reused by the next
run, so only clean directories for units you do not intend to resume. Use
--all to remove every unit directory regardless of age.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			age := maxAge
			if cleanAll {
				age = 0
			}
			if age < 0 {
				return fmt.Errorf("--max-age must not be negative")
			}

			result := staging.CleanStale(cmd.Context(), ctx.layout(), age, ctx.consoleLogger())
			if ctx.JSONMode() {
				return writeStagingCleanJSON(cmd, result)
			}
			return printStagingCleanResult(cmd, result)
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 7*24*time.Hour, "Only remove directories older than this")
	cmd.Flags().BoolVar(&cleanAll, "all", false, "Remove all staging directories")
	return cmd
}

func printStagingCleanResult(cmd *cobra.Command, result staging.CleanStaleResult) error {
	out := cmd.OutOrStdout()
	if len(result.Removed) == 0 && len(result.Errors) == 0 {
		fmt.Fprintln(out, "No staging directories to clean")
		return nil
	}
	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "Removed %d staging directories, %d errors\n", len(result.Removed), len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Error)
		}
		return nil
	}
	fmt.Fprintf(out, "Removed %d staging directories\n", len(result.Removed))
	return nil
}

func writeStagingCleanJSON(cmd *cobra.Command, result staging.CleanStaleResult) error {
	removed := result.Removed
	if removed == nil {
		removed = []string{}
	}
	errs := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		errs = append(errs, fmt.Sprintf("%s: %v", e.Path, e.Error))
	}
	return writeJSON(cmd, map[string]any{
		"removed": removed,
		"errors":  errs,
	})
}
