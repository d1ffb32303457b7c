package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"recsync/internal/cache"
	"recsync/internal/config"
	"recsync/internal/engine"
	"recsync/internal/protocol"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <type> <target> [key=value ...]",
		Short: "Store a pending transaction for the engine to send",
		Long: `Store a pending transaction record directly in the cache. A running
engine picks it up at its next restart; this exists for testing and
one-off operational fixes.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			txType := protocol.TxType(strings.ToUpper(strings.TrimSpace(args[0])))
			if !protocol.KnownTxType(string(txType)) {
				return fmt.Errorf("unknown transaction type %q", args[0])
			}
			target := args[1]

			fields := make([]protocol.Field, 0, len(args)-2)
			for _, arg := range args[2:] {
				key, value, found := strings.Cut(arg, "=")
				if !found || key == "" {
					return fmt.Errorf("field %q is not key=value", arg)
				}
				fields = append(fields, protocol.Field{Key: key, Value: value})
			}

			return ctx.withStore(func(_ *config.Config, store *cache.Store) error {
				journal := engine.NewJournal(store)
				reqCtx := cmd.Context()

				id, err := journal.NextID(reqCtx)
				if err != nil {
					return fmt.Errorf("allocate transaction id: %w", err)
				}
				tx := protocol.NewTransaction(id, txType, target, fields)
				if err := journal.WritePending(reqCtx, tx); err != nil {
					return fmt.Errorf("store transaction: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Stored pending transaction %d (%s %s)\n", id, txType, target)
				return nil
			})
		},
	}
}
