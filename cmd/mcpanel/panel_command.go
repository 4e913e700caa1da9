package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mcpanel/internal/api"
)

func newPanelCommand(ctx *commandContext) *cobra.Command {
	panelCmd := &cobra.Command{
		Use:   "panel",
		Short: "Inspect the panel daemon",
	}

	var jsonOut bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether a panel is running and where",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.panelClient()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			status, err := client.Panel(cmd.Context())
			if api.IsUnavailable(err) {
				if jsonOut {
					return writeJSON(cmd, api.PanelStatus{Bind: cfg.Panel.Bind, LockFilePath: cfg.LockPath()})
				}
				fmt.Fprintln(stdout, renderStatusLine("Panel", statusWarn, "not running on "+bindLabel(cfg.Panel.Bind), colorize))
				fmt.Fprintln(stdout, "Start it with `mcpanel serve`")
				return nil
			}
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, status)
			}
			for _, line := range renderPanelStatus(status, colorize) {
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	panelCmd.AddCommand(statusCmd)
	return panelCmd
}

func renderPanelStatus(status api.PanelStatus, colorize bool) []string {
	lines := renderSectionHeader("Panel", colorize)
	lines = append(lines,
		renderStatusLine("Panel", statusOK, fmt.Sprintf("running (pid %d)", status.PID), colorize),
		renderField("Listening", status.Bind),
		renderField("Control plane", status.ControlPlane),
		renderField("Started", orDash(status.StartedAt)),
		renderField("Cache", orDash(status.CachePath)),
		renderField("Lock file", status.LockFilePath),
		renderField("Log", orDash(status.LogPath)),
	)
	return lines
}

func bindLabel(bind string) string {
	if bind == "" {
		return "(panel.bind disabled)"
	}
	return bind
}
