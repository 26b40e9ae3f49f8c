// Package audiosynth implements the audio generation stage. It feeds the
// episode script's narration to the speech service and records the produced
// audio file on the episode.
package audiosynth

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"tubecraft/internal/config"
	"tubecraft/internal/episode"
	"tubecraft/internal/logging"
	"tubecraft/internal/services"
	"tubecraft/internal/services/speech"
	"tubecraft/internal/stage"
)

const stageName = "generating_audio"

// SpeechClient is the TTS surface the synthesizer needs.
type SpeechClient interface {
	Synthesize(ctx context.Context, text, outPath string) (*speech.Result, error)
	HealthCheck(ctx context.Context) error
}

// Synthesizer narrates episode scripts.
type Synthesizer struct {
	cfg    *config.Config
	logger *slog.Logger
	client SpeechClient
}

// NewSynthesizer constructs the audio generation stage handler.
func NewSynthesizer(cfg *config.Config, logger *slog.Logger, client SpeechClient) *Synthesizer {
	return &Synthesizer{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "audiosynth"),
		client: client,
	}
}

// Status returns the generating status this handler owns.
func (s *Synthesizer) Status() episode.Status {
	return episode.StatusGeneratingAudio
}

// Prepare verifies the upstream stage left a usable script.
func (s *Synthesizer) Prepare(_ context.Context, ep *episode.Episode) error {
	if ep == nil {
		return services.Wrap(services.ErrInternal, stageName, "prepare", "episode is nil", nil)
	}
	script, err := episode.ParseScript(ep.ScriptJSON)
	if err != nil {
		return services.Wrap(services.ErrInvalidInput, stageName, "prepare", "episode has no usable script", err)
	}
	if strings.TrimSpace(script.NarrationText()) == "" {
		return services.Wrap(services.ErrInvalidInput, stageName, "prepare", "script has no narration", nil)
	}
	return nil
}

// Execute synthesizes narration audio and attaches its path to the episode.
func (s *Synthesizer) Execute(ctx context.Context, ep *episode.Episode) error {
	logger := logging.WithContext(ctx, s.logger)

	script, err := episode.ParseScript(ep.ScriptJSON)
	if err != nil {
		return services.Wrap(services.ErrInvalidInput, stageName, "execute", "episode has no usable script", err)
	}

	format := strings.TrimSpace(s.cfg.Audio.Format)
	if format == "" {
		format = "mp3"
	}
	outPath := filepath.Join(s.cfg.AudioOutputDir(), ep.ID+"."+format)

	result, err := s.client.Synthesize(ctx, script.NarrationText(), outPath)
	if err != nil {
		return err
	}
	ep.AudioPath = result.Path

	logger.Info("narration synthesized",
		logging.String("audio_path", result.Path),
		logging.Int64("bytes", result.Bytes),
	)
	return nil
}

// HealthCheck reports whether the speech service is reachable.
func (s *Synthesizer) HealthCheck(ctx context.Context) stage.Health {
	if err := s.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(stageName, err.Error())
	}
	return stage.Healthy(stageName)
}
