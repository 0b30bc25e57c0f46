package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"subtrans/internal/preflight"
)

const checkLabelWidth = 22

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var keys []string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check paths, binaries, provider keys, and the broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			checkCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			results := preflight.RunAll(checkCtx, cfg, keys)
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			required := 0
			for _, result := range results {
				fmt.Fprintln(out, renderCheckLine(result, colorize))
				if !result.Passed && !result.Optional {
					required++
				}
			}
			if required > 0 {
				return errors.New(pluralChecks(required) + " failed")
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&keys, "key", nil, "Provider key to test instead of provider.api_keys (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Overall time limit for the checks")
	return cmd
}

func renderCheckLine(result preflight.Result, colorize bool) string {
	label, color := "OK", text.FgGreen
	switch {
	case !result.Passed && result.Optional:
		label, color = "WARN", text.FgYellow
	case !result.Passed:
		label, color = "ERROR", text.FgRed
	}
	line := fmt.Sprintf("  %-*s [%s] %s", checkLabelWidth, result.Name+":", label, strings.TrimSpace(result.Detail))
	if colorize {
		return color.Sprint(line)
	}
	return line
}

func pluralChecks(n int) string {
	if n == 1 {
		return "1 check"
	}
	return fmt.Sprintf("%d checks", n)
}

