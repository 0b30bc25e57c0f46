package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"subtrans/internal/ipc"
)

func newResultCommand(ctx *commandContext) *cobra.Command {
	var rng rangeFlags
	var outputPath string
	var batches bool

	cmd := &cobra.Command{
		Use:   "result <video-url>",
		Short: "Print or save the stored translation of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := rng.value(cmd)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				result, err := client.Result(strings.TrimSpace(args[0]), window)
				if err != nil {
					return err
				}
				if batches {
					fmt.Fprint(cmd.OutOrStdout(), renderTable(
						[]column{{Header: "#", Right: true}, {Header: "Window"}, {Header: "Status"}},
						buildBatchRows(result.Batches, shouldColorize(cmd.OutOrStdout())),
					))
					return nil
				}
				target := strings.TrimSpace(outputPath)
				if target == "" {
					fmt.Fprint(cmd.OutOrStdout(), result.Track)
					return nil
				}
				if err := os.WriteFile(target, []byte(result.Track), 0o644); err != nil {
					return fmt.Errorf("write subtitles: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", target)
				return nil
			})
		},
	}

	rng.bind(cmd)
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the SRT track to this file")
	cmd.Flags().BoolVar(&batches, "batches", false, "List the batches and their status instead of the track")
	return cmd
}

func buildBatchRows(windows []ipc.Window, colorize bool) [][]string {
	rows := make([][]string, 0, len(windows))
	for _, w := range windows {
		label := formatSeconds(w.WindowStart) + "-" + formatSeconds(w.WindowEnd) + "s"
		if w.Presub {
			label += " (presub)"
		}
		rows = append(rows, []string{strconv.Itoa(w.Index), label, colorStatus(w.Status, colorize)})
	}
	return rows
}
