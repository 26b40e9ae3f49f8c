package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tubecraft/internal/api"
	"tubecraft/internal/audiosynth"
	"tubecraft/internal/config"
	"tubecraft/internal/daemon"
	"tubecraft/internal/episode"
	"tubecraft/internal/logging"
	"tubecraft/internal/scheduler"
	"tubecraft/internal/scriptgen"
	"tubecraft/internal/services/media"
	"tubecraft/internal/services/ollama"
	"tubecraft/internal/services/speech"
	"tubecraft/internal/videoassembly"
)

func newDaemonCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the generation daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			return runDaemon(cfg)
		},
	}
}

func runDaemon(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := episode.Open(cfg)
	if err != nil {
		return fmt.Errorf("open episode store: %w", err)
	}

	sched := scheduler.New(cfg, store, logger,
		scriptgen.NewGenerator(cfg, logger, ollama.NewClient(cfg.Ollama), store),
		audiosynth.NewSynthesizer(cfg, logger, speech.NewClient(cfg.Speech)),
		videoassembly.NewAssembler(cfg, logger, media.NewAssembler(cfg)),
	)
	service := api.NewService(cfg, store, sched, logger)
	server := api.NewServer(service, logger)

	d, err := daemon.New(cfg, store, logger, sched, server)
	if err != nil {
		store.Close()
		return err
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("daemon shutting down")
	return nil
}
