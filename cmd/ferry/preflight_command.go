package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ferry/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var artifactRun bool

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check directories and external commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cfg, artifactRun)
			failed := preflight.Failed(results)

			if ctx.JSONMode() {
				checks := make([]map[string]any, 0, len(results))
				for _, r := range results {
					checks = append(checks, map[string]any{
						"name":     r.Name,
						"passed":   r.Passed,
						"optional": r.Optional,
						"detail":   r.Detail,
					})
				}
				if err := writeJSON(cmd, map[string]any{"checks": checks, "ok": len(failed) == 0}); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Preflight", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, r := range results {
					kind := statusOK
					switch {
					case !r.Passed && r.Optional:
						kind = statusWarn
					case !r.Passed:
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
				}
			}

			if len(failed) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(failed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&artifactRun, "artifact", false, "Check only what a --artifact run needs")
	return cmd
}
