package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newPlayersCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "players",
		Short: "List players on the running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServer(cmd.Context(), func(srv serverAPI) error {
				resp, err := srv.Players(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}

				stdout := cmd.OutOrStdout()
				if !resp.Online {
					fmt.Fprintf(stdout, "%s is not answering status pings yet\n", resp.Address)
					return nil
				}
				header := fmt.Sprintf("%s: %d/%d online", resp.Address, resp.Count, resp.Max)
				if resp.Version != "" {
					header += " (" + resp.Version + ")"
				}
				fmt.Fprintln(stdout, header)
				if resp.MOTD != "" {
					fmt.Fprintln(stdout, resp.MOTD)
				}
				if len(resp.Players) == 0 {
					fmt.Fprintln(stdout, "No players online")
					return nil
				}
				rows := make([][]string, 0, len(resp.Players))
				for i, p := range resp.Players {
					rows = append(rows, []string{strconv.Itoa(i + 1), p.Name, p.UUID})
				}
				fmt.Fprint(stdout, renderTable([]string{"#", "Name", "UUID"}, rows, []columnAlignment{alignRight, alignLeft, alignLeft}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
