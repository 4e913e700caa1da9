package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"mcpanel/internal/api"
)

const defaultWaitTimeout = 15 * time.Minute

type actionOptions struct {
	wait    bool
	timeout time.Duration
	json    bool
}

func (o *actionOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&o.wait, "wait", "w", false, "Wait until the server settles in RUNNING or STOPPED")
	cmd.Flags().DurationVar(&o.timeout, "timeout", defaultWaitTimeout, "Maximum time to wait with --wait")
	cmd.Flags().BoolVar(&o.json, "json", false, "Output the final status as JSON")
}

func newServerCommands(ctx *commandContext) []*cobra.Command {
	var startReq api.StartRequest
	var startOpts actionOptions
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Launch the server",
		Long: "Launch the server. Flags left unset fall back to the [launch] defaults.\n" +
			"Mods are only accepted for FABRIC servers.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServer(cmd.Context(), func(srv serverAPI) error {
				return runAction(cmd, srv, "Start", startOpts, func(c context.Context) (api.StatusResponse, error) {
					return srv.Start(c, startReq)
				})
			})
		},
	}
	startCmd.Flags().StringVarP(&startReq.Type, "type", "t", "", "Server type: VANILLA or FABRIC")
	startCmd.Flags().StringVarP(&startReq.Version, "version", "v", "", "Minecraft version, e.g. 1.20.1")
	startCmd.Flags().StringSliceVar(&startReq.Datapacks, "datapack", nil, "Datapack URL (repeatable)")
	startCmd.Flags().StringSliceVar(&startReq.Mods, "mod", nil, "Mod URL for FABRIC servers (repeatable)")
	startOpts.bind(startCmd)

	var stopOpts actionOptions
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServer(cmd.Context(), func(srv serverAPI) error {
				return runAction(cmd, srv, "Stop", stopOpts, srv.Stop)
			})
		},
	}
	stopOpts.bind(stopCmd)

	var watch bool
	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServer(cmd.Context(), func(srv serverAPI) error {
				resp, err := srv.Status(cmd.Context())
				if err != nil && !resp.Known {
					return err
				}
				if watch {
					resp, err = waitForServer(cmd, srv, resp, defaultWaitTimeout, !statusJSON)
				}
				if statusJSON {
					if jsonErr := writeJSON(cmd, resp); jsonErr != nil {
						return jsonErr
					}
					return err
				}
				stdout := cmd.OutOrStdout()
				for _, line := range renderServerStatus(resp, time.Now(), shouldColorize(stdout)) {
					fmt.Fprintln(stdout, line)
				}
				return err
			})
		},
	}
	statusCmd.Flags().BoolVarP(&watch, "watch", "w", false, "Follow status changes until polling stops")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")

	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the server status now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServer(cmd.Context(), func(srv serverAPI) error {
				resp, err := srv.Refresh(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Status: %s\n", statusSummary(resp))
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, statusCmd, refreshCmd}
}

func runAction(cmd *cobra.Command, srv serverAPI, verb string, opts actionOptions, call func(context.Context) (api.StatusResponse, error)) error {
	stdout := cmd.OutOrStdout()
	resp, err := call(cmd.Context())
	if err != nil {
		return err
	}
	if !opts.json {
		fmt.Fprintf(stdout, "%s requested (%s)\n", verb, srv.Mode())
		fmt.Fprintf(stdout, "Status: %s\n", statusSummary(resp))
	}

	if opts.wait {
		resp, err = waitForServer(cmd, srv, resp, opts.timeout, !opts.json)
	} else if !opts.json && resp.Poll.Polling && srv.Mode() == "local" {
		fmt.Fprintln(stdout, "Run `mcpanel status --watch` or pass --wait to follow progress")
	}

	if opts.json {
		if jsonErr := writeJSON(cmd, resp); jsonErr != nil {
			return jsonErr
		}
	}
	return err
}

// waitForServer follows status changes until polling stops or timeout passes.
// A poll that gave up without reaching a terminal status is an error.
func waitForServer(cmd *cobra.Command, srv serverAPI, current api.StatusResponse, timeout time.Duration, verbose bool) (api.StatusResponse, error) {
	if !current.Poll.Polling && !current.Poll.ActionInFlight {
		return current, nil
	}
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}
	waitCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	final, err := srv.Wait(waitCtx, func(resp api.StatusResponse) {
		if verbose {
			printTransition(cmd.OutOrStdout(), resp)
		}
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return final, fmt.Errorf("server did not settle within %s (last status %s)", timeout, displayStatus(final.Status.TaskStatus))
	}
	if err != nil {
		return final, err
	}
	if !final.Status.Terminal && final.Poll.LastError != "" {
		return final, fmt.Errorf("polling stopped before the server settled: %s", final.Poll.LastError)
	}
	return final, nil
}

func printTransition(w io.Writer, resp api.StatusResponse) {
	fmt.Fprintf(w, "[%s] %s\n", time.Now().Format("15:04:05"), statusSummary(resp))
}
