package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"subtrans/internal/ipc"
)

type column struct {
	Header string
	Right  bool
}

func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, col := range columns {
		header[i] = col.Header
		align := text.AlignLeft
		if col.Right {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render() + "\n"
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func colorStatus(status string, colorize bool) string {
	if !colorize {
		return status
	}
	var color text.Color
	switch status {
	case "completed":
		color = text.FgGreen
	case "error":
		color = text.FgRed
	case "translating":
		color = text.FgCyan
	case "paused":
		color = text.FgYellow
	default:
		return status
	}
	return color.Sprint(status)
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func formatRange(rng *ipc.Range) string {
	if rng == nil {
		return "full"
	}
	return formatSeconds(rng.Start) + "-" + formatSeconds(rng.End) + "s"
}

func formatProgress(job ipc.Job) string {
	p := job.Progress
	if p.TotalBatches == 0 {
		return "-"
	}
	out := fmt.Sprintf("%d/%d", p.CompletedBatches, p.TotalBatches)
	if p.FailedBatches > 0 {
		out += fmt.Sprintf(" (%d failed)", p.FailedBatches)
	}
	return out
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

// rangeFlags binds the optional --start/--end pair shared by several
// commands.
type rangeFlags struct {
	start float64
	end   float64
}

func (f *rangeFlags) bind(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.start, "start", 0, "Range start in seconds")
	cmd.Flags().Float64Var(&f.end, "end", 0, "Range end in seconds (requires --start)")
}

func (f *rangeFlags) value(cmd *cobra.Command) (*ipc.Range, error) {
	startSet := cmd.Flags().Changed("start")
	endSet := cmd.Flags().Changed("end")
	if !startSet && !endSet {
		return nil, nil
	}
	if !endSet {
		return nil, fmt.Errorf("--end is required with --start")
	}
	if f.start < 0 || f.end <= f.start {
		return nil, fmt.Errorf("invalid range %s-%s", formatSeconds(f.start), formatSeconds(f.end))
	}
	return &ipc.Range{Start: f.start, End: f.end}, nil
}
