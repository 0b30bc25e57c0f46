package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"subtrans/internal/ipc"
)

func newKeysCommand(ctx *commandContext) *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage provider API keys",
	}
	keysCmd.AddCommand(newKeysSetCommand(ctx))
	keysCmd.AddCommand(newKeysListCommand(ctx))
	return keysCmd
}

func newKeysSetCommand(ctx *commandContext) *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "set [key...]",
		Short: "Replace the key pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := append([]string(nil), args...)
			if fromStdin {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					keys = append(keys, scanner.Text())
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("read keys: %w", err)
				}
			}
			cleaned := keys[:0]
			for _, key := range keys {
				if trimmed := strings.TrimSpace(key); trimmed != "" {
					cleaned = append(cleaned, trimmed)
				}
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.KeysSet(cleaned)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Key pool now holds %d keys\n", resp.Count)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read keys from stdin, one per line")
	return cmd
}

func newKeysListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the masked provider keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.KeysList()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Keys) == 0 {
					fmt.Fprintln(out, "No keys configured")
					return nil
				}
				for _, key := range resp.Keys {
					fmt.Fprintln(out, key)
				}
				return nil
			})
		},
	}
}
