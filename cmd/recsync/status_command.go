package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"recsync/internal/cache"
	"recsync/internal/config"
	"recsync/internal/engine"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync state and stored transaction counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *cache.Store) error {
				journal := engine.NewJournal(store)
				reqCtx := cmd.Context()

				pending, done, failed, err := journal.Counts(reqCtx)
				if err != nil {
					return fmt.Errorf("read transaction counts: %w", err)
				}
				maxID, err := journal.MaxID(reqCtx)
				if err != nil {
					return fmt.Errorf("read id high-water mark: %w", err)
				}
				_, hasCredential, err := store.Get(reqCtx, engine.CredentialKey)
				if err != nil {
					return fmt.Errorf("read stored credential: %w", err)
				}

				rows := [][]string{
					{"Server", cfg.Server.URL},
					{"User", cfg.Server.UserID},
					{"Stored credential", yesNo(hasCredential)},
					{"Pending", strconv.Itoa(pending)},
					{"Done", strconv.Itoa(done)},
					{"Failed", strconv.Itoa(failed)},
					{"Last transaction id", strconv.FormatInt(maxID, 10)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Metric", "Value"}, rows))
				return nil
			})
		},
	}
}
