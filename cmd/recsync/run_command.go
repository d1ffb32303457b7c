package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"recsync/internal/cache"
	"recsync/internal/engine"
	"recsync/internal/logging"
	"recsync/internal/transport"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the sync engine in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd.Context(), ctx)
		},
	}
}

func runEngine(cmdCtx context.Context, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := cache.Open(cfg)
	if err != nil {
		return fmt.Errorf("open cache store: %w", err)
	}
	defer store.Close()

	eng := engine.New(cfg, store, transport.New(cfg), logger)
	if err := eng.Start(signalCtx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	<-signalCtx.Done()
	eng.Stop()
	return nil
}
