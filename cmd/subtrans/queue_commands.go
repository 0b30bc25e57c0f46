package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"subtrans/internal/ipc"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the translation queue",
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueCountsCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueControlCommand(ctx, "pause", "Pause the jobs of a video", (*ipc.Client).QueuePause))
	queueCmd.AddCommand(newQueueControlCommand(ctx, "resume", "Resume the paused jobs of a video", (*ipc.Client).QueueResume))
	queueCmd.AddCommand(newQueueControlCommand(ctx, "retry", "Requeue the failed jobs of a video", (*ipc.Client).QueueRetry))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueRetranslateCommand(ctx))

	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var rng rangeFlags
	var duration float64
	var origin string
	var mimeType string

	cmd := &cobra.Command{
		Use:   "add <video-url>",
		Short: "Queue a video for translation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := rng.value(cmd)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueAdd(ipc.QueueAddRequest{
					VideoURL:        strings.TrimSpace(args[0]),
					Range:           window,
					Origin:          origin,
					DurationSeconds: duration,
					MimeType:        mimeType,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if resp.Created {
					fmt.Fprintf(out, "Queued job %s (%d batches)\n", resp.Job.ID, resp.Job.Progress.TotalBatches)
				} else {
					fmt.Fprintf(out, "Already queued as job %s (%s)\n", resp.Job.ID, resp.Job.Status)
				}
				return nil
			})
		},
	}

	rng.bind(cmd)
	cmd.Flags().Float64Var(&duration, "duration", 0, "Video duration in seconds (probed when omitted)")
	cmd.Flags().StringVar(&origin, "origin", "queue", "Job origin: queue or direct")
	cmd.Flags().StringVar(&mimeType, "mime", "", "Video MIME type override")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueList(statuses)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Items)
				}
				if len(resp.Items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]column{{Header: "ID"}, {Header: "Video"}, {Header: "Range"}, {Header: "Origin"}, {Header: "Status"}, {Header: "Batches", Right: true}},
					buildQueueListRows(resp.Items, shouldColorize(cmd.OutOrStdout())),
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print jobs as JSON")
	return cmd
}

func buildQueueListRows(jobs []ipc.Job, colorize bool) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			shortID(job.ID),
			truncate(job.VideoURL, 48),
			formatRange(job.Range),
			job.Origin,
			colorStatus(job.Status, colorize),
			formatProgress(job),
		})
	}
	return rows
}

func newQueueCountsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Show job counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueCounts()
				if err != nil {
					return err
				}
				rows := buildCountRows(resp.Counts)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]column{{Header: "Status"}, {Header: "Count", Right: true}}, rows))
				return nil
			})
		},
	}
}

var statusOrder = []string{"pending", "translating", "paused", "completed", "error"}

func buildCountRows(counts map[string]int) [][]string {
	var rows [][]string
	for _, status := range statusOrder {
		if count := counts[status]; count > 0 {
			rows = append(rows, []string{status, strconv.Itoa(count)})
		}
	}
	return rows
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <video-url>",
		Short: "Show where a video sits in the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.VideoStatus(strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !resp.InQueue {
					fmt.Fprintln(out, "Not in queue")
					return nil
				}
				if resp.Position > 0 {
					fmt.Fprintf(out, "%s (position %d)\n", resp.Status, resp.Position)
					return nil
				}
				fmt.Fprintln(out, resp.Status)
				return nil
			})
		},
	}
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show job details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueDescribe(strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Job)
				}
				printJob(cmd, resp.Job)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the job as JSON")
	return cmd
}

func printJob(cmd *cobra.Command, job ipc.Job) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	fmt.Fprintf(out, "Job:       %s\n", job.ID)
	fmt.Fprintf(out, "Video:     %s\n", job.VideoURL)
	fmt.Fprintf(out, "Range:     %s\n", formatRange(job.Range))
	fmt.Fprintf(out, "Origin:    %s\n", job.Origin)
	fmt.Fprintf(out, "Status:    %s\n", colorStatus(job.Status, colorize))
	fmt.Fprintf(out, "Batches:   %s (%.0f%%)\n", formatProgress(job), job.Progress.Percent)
	if job.RetranslateBatchIndex != nil {
		fmt.Fprintf(out, "Redo:      batch %d\n", *job.RetranslateBatchIndex)
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:     %s\n", job.ErrorMessage)
	}
	if job.UpdatedAt != "" {
		fmt.Fprintf(out, "Updated:   %s\n", job.UpdatedAt)
	}
}

type videoControl func(*ipc.Client, string) (*ipc.JobResponse, error)

func newQueueControlCommand(ctx *commandContext, use, short string, call videoControl) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <video-url>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := call(client, strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s is %s\n", resp.Job.ID, resp.Job.Status)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "remove <video-url>",
		Short: "Remove every job of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueRemove(strings.TrimSpace(args[0]), purge)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Removed %d jobs\n", resp.Jobs)
				if purge {
					fmt.Fprintf(out, "Deleted %d stored results\n", resp.Results)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "Also delete stored translations")
	return cmd
}

func newQueueRetranslateCommand(ctx *commandContext) *cobra.Command {
	var rng rangeFlags

	cmd := &cobra.Command{
		Use:   "retranslate <video-url> <batch-index>",
		Short: "Translate one batch of a stored result again",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(strings.TrimSpace(args[1]))
			if err != nil || index < 0 {
				return errors.New("batch index must be a non-negative integer")
			}
			window, err := rng.value(cmd)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueRetranslate(ipc.QueueRetranslateRequest{
					VideoURL:   strings.TrimSpace(args[0]),
					Range:      window,
					BatchIndex: index,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued batch %d as job %s\n", index, resp.Job.ID)
				return nil
			})
		},
	}
	rng.bind(cmd)
	return cmd
}
