package main

import (
	"github.com/spf13/cobra"

	"mcpanel/internal/panel"
)

// newRootCommand builds the command tree. localOpts customize the in-process
// backend used when no panel is running.
func newRootCommand(localOpts ...panel.Option) *cobra.Command {
	var configFlag string
	var localFlag bool

	ctx := newCommandContext(&configFlag, &localFlag, localOpts...)

	rootCmd := &cobra.Command{
		Use:           "mcpanel",
		Short:         "Start, stop, and watch a remote Minecraft server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&localFlag, "local", false, "Talk to the control plane directly even when a panel is running")

	for _, cmd := range newServerCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newPlayersCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newPanelCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))
	rootCmd.AddCommand(newTestNotifyCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
