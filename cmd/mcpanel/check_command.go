package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mcpanel/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check directories, the panel bind address, and the control plane",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			// A running panel owns the bind address.
			panelRunning := false
			if client, err := ctx.panelClient(); err == nil && client != nil {
				probeCtx, cancel := context.WithTimeout(cmd.Context(), panelProbeTimeout)
				_, probeErr := client.Panel(probeCtx)
				cancel()
				panelRunning = probeErr == nil
			}

			results := preflight.RunAll(cmd.Context(), cfg, preflight.Options{Bind: !panelRunning, Remote: true})
			failed := preflight.Failed(results)
			if jsonOut {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)
				for _, line := range renderSectionHeader("Preflight", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, r := range results {
					kind := statusOK
					if !r.Passed {
						kind = statusError
					}
					fmt.Fprintln(stdout, renderStatusLine(r.Name, kind, r.Detail, colorize))
				}
				if panelRunning {
					fmt.Fprintln(stdout, renderStatusLine("Panel", statusInfo, "running on "+cfg.Panel.Bind, colorize))
				}
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
