package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"subtrans/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, status)
				}
				printStatus(cmd, status)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print status as JSON")
	return cmd
}

func printStatus(cmd *cobra.Command, status *ipc.StatusResponse) {
	out := cmd.OutOrStdout()
	running := "stopped"
	if status.Running {
		running = fmt.Sprintf("running (pid %d)", status.PID)
	}
	rows := [][]string{
		{"Daemon", running},
		{"Keys", fmt.Sprintf("%d (available: %s)", status.Keys, yesNo(status.KeyAvailable))},
		{"Attached clients", strconv.Itoa(status.AttachedClients)},
		{"Database", status.DatabasePath},
	}
	if status.Active != nil {
		rows = append(rows, []string{"Active", fmt.Sprintf("%s %s [%s]", shortID(status.Active.ID), truncate(status.Active.VideoURL, 40), formatProgress(*status.Active))})
	} else {
		rows = append(rows, []string{"Active", "idle"})
	}
	for _, row := range buildCountRows(status.Counts) {
		rows = append(rows, []string{"Queue " + row[0], row[1]})
	}
	fmt.Fprint(out, renderTable([]column{{Header: "Component"}, {Header: "State"}}, rows))
}
