package main

import (
	"log/slog"

	"tubecraft/internal/audiosynth"
	"tubecraft/internal/config"
	"tubecraft/internal/episode"
	"tubecraft/internal/scheduler"
	"tubecraft/internal/scriptgen"
	"tubecraft/internal/services/media"
	"tubecraft/internal/services/ollama"
	"tubecraft/internal/services/speech"
	"tubecraft/internal/videoassembly"
)

func buildScheduler(cfg *config.Config, store *episode.Store, logger *slog.Logger) *scheduler.Scheduler {
	return scheduler.New(cfg, store, logger,
		scriptgen.NewGenerator(cfg, logger, ollama.NewClient(cfg.Ollama), store),
		audiosynth.NewSynthesizer(cfg, logger, speech.NewClient(cfg.Speech)),
		videoassembly.NewAssembler(cfg, logger, media.NewAssembler(cfg)),
	)
}
