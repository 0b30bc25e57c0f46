package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"subtrans/internal/ipc"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the batch settings applied to new jobs",
	}
	settingsCmd.AddCommand(newSettingsShowCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))
	return settingsCmd
}

func newSettingsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current batch settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SettingsGet()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Settings)
				}
				printSettings(cmd, resp.Settings)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print settings as JSON")
	return cmd
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	var next ipc.BatchSettings

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change batch settings; unset flags keep their current value",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				current, err := client.SettingsGet()
				if err != nil {
					return err
				}
				merged := current.Settings
				flags := cmd.Flags()
				if flags.Changed("max-video-duration") {
					merged.MaxVideoDuration = next.MaxVideoDuration
				}
				if flags.Changed("max-concurrent-batches") {
					merged.MaxConcurrentBatches = next.MaxConcurrentBatches
				}
				if flags.Changed("batch-offset") {
					merged.BatchOffset = next.BatchOffset
				}
				if flags.Changed("presub-duration") {
					merged.PresubDuration = next.PresubDuration
				}
				if flags.Changed("presub-config") {
					merged.PresubConfigID = next.PresubConfigID
				}
				resp, err := client.SettingsSet(merged)
				if err != nil {
					return err
				}
				printSettings(cmd, resp.Settings)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&next.MaxVideoDuration, "max-video-duration", 0, "Batch length in seconds (300-1800)")
	cmd.Flags().IntVar(&next.MaxConcurrentBatches, "max-concurrent-batches", 0, "Batches translated in parallel (1-5)")
	cmd.Flags().IntVar(&next.BatchOffset, "batch-offset", 0, "Context overlap between batches in seconds (0-300)")
	cmd.Flags().IntVar(&next.PresubDuration, "presub-duration", 0, "Length of the short first batch in seconds (60-300)")
	cmd.Flags().StringVar(&next.PresubConfigID, "presub-config", "", "Provider profile for a short first batch (empty disables)")
	return cmd
}

func printSettings(cmd *cobra.Command, s ipc.BatchSettings) {
	presub := "off"
	if s.PresubConfigID != "" {
		presub = strconv.Itoa(s.PresubDuration) + "s via " + s.PresubConfigID
	}
	fmt.Fprint(cmd.OutOrStdout(), renderTable(
		[]column{{Header: "Setting"}, {Header: "Value", Right: true}},
		[][]string{
			{"Max video duration", strconv.Itoa(s.MaxVideoDuration) + "s"},
			{"Max concurrent batches", strconv.Itoa(s.MaxConcurrentBatches)},
			{"Batch offset", strconv.Itoa(s.BatchOffset) + "s"},
			{"Presub", presub},
		},
	))
}
