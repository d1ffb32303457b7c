package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"recsync/internal/cache"
	"recsync/internal/config"
	"recsync/internal/engine"
	"recsync/internal/logging"
	"recsync/internal/transport"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := cache.Open(cfg)
	if err != nil {
		logger.Error("open cache store", logging.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	eng := engine.New(cfg, store, transport.New(cfg), logger)
	if err := eng.Start(ctx); err != nil {
		logger.Error("start engine", logging.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("recsyncd shutting down")
	eng.Stop()
}
