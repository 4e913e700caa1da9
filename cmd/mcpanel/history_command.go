package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded status transitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must be positive")
			}
			return ctx.withServer(cmd.Context(), func(srv serverAPI) error {
				resp, err := srv.History(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Entries) == 0 {
					fmt.Fprintln(stdout, "No transitions recorded")
					return nil
				}
				rows := make([][]string, 0, len(resp.Entries))
				for _, e := range resp.Entries {
					detail := e.ServerIP
					if e.Error != "" {
						detail = e.Error
					}
					rows = append(rows, []string{
						strconv.FormatInt(e.ID, 10),
						orDash(e.ObservedAt),
						displayStatus(e.TaskStatus),
						e.Cause,
						orDash(detail),
					})
				}
				fmt.Fprint(stdout, renderTable(
					[]string{"ID", "Observed", "Status", "Cause", "Detail"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of transitions to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
