package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tubecraft/internal/api"
	"tubecraft/internal/config"
	"tubecraft/internal/daemon"
	"tubecraft/internal/episode"
	"tubecraft/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := episode.Open(cfg)
	if err != nil {
		logger.Error("open episode store", logging.Error(err))
		os.Exit(1)
	}

	sched := buildScheduler(cfg, store, logger)
	service := api.NewService(cfg, store, sched, logger)
	server := api.NewServer(service, logger)

	d, err := daemon.New(cfg, store, logger, sched, server)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("tubecraftd shutting down")
}
