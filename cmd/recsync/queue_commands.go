package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"recsync/internal/cache"
	"recsync/internal/config"
	"recsync/internal/engine"
	"recsync/internal/protocol"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and trim stored transaction records",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx, "clear-done", "Remove archived successful transactions"))
	queueCmd.AddCommand(newQueueClearCommand(ctx, "clear-failed", "Remove archived failed transactions"))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var state string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *cache.Store) error {
				journal := engine.NewJournal(store)
				reqCtx := cmd.Context()

				var (
					txs []*protocol.Transaction
					err error
				)
				switch strings.ToLower(strings.TrimSpace(state)) {
				case "", "pending":
					txs, err = journal.LoadPending(reqCtx)
				case "done":
					txs, err = journal.ListDone(reqCtx)
				case "failed":
					txs, err = journal.ListFailed(reqCtx)
				default:
					return fmt.Errorf("unknown state %q (want pending, done, or failed)", state)
				}
				if err != nil {
					return fmt.Errorf("list transactions: %w", err)
				}

				if len(txs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No stored transactions")
					return nil
				}

				rows := make([][]string, 0, len(txs))
				for _, tx := range txs {
					rows = append(rows, []string{
						strconv.FormatInt(tx.ID, 10),
						string(tx.Type),
						tx.Target,
						tx.ResultCode.String(),
						tx.ResultMessage,
						formatStamp(tx.ClosedAt),
					})
				}
				headers := []string{"ID", "Type", "Target", "Result", "Message", "Closed"}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, 0))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&state, "state", "pending", "Which records to list: pending, done, or failed")
	return cmd
}

func newQueueClearCommand(ctx *commandContext, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *cache.Store) error {
				journal := engine.NewJournal(store)
				var (
					removed int64
					err     error
				)
				if use == "clear-done" {
					removed, err = journal.ClearDone(cmd.Context())
				} else {
					removed, err = journal.ClearFailed(cmd.Context())
				}
				if err != nil {
					return fmt.Errorf("clear transactions: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stored transactions\n", removed)
				return nil
			})
		},
	}
}

func formatStamp(millis int64) string {
	if millis == 0 {
		return ""
	}
	return time.UnixMilli(millis).UTC().Format(time.RFC3339)
}
