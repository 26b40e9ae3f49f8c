// Package videoassembly implements the video generation stage. It hands the
// narration audio to the media assembler and records the rendered video on
// the episode.
package videoassembly

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tubecraft/internal/config"
	"tubecraft/internal/episode"
	"tubecraft/internal/logging"
	"tubecraft/internal/services"
	"tubecraft/internal/services/media"
	"tubecraft/internal/stage"
)

const stageName = "generating_video"

// MediaAssembler is the rendering surface this stage needs.
type MediaAssembler interface {
	Assemble(ctx context.Context, req media.AssembleRequest) (*media.AssembleResult, error)
	HealthCheck(ctx context.Context) error
}

// Assembler renders the final episode video.
type Assembler struct {
	cfg       *config.Config
	logger    *slog.Logger
	assembler MediaAssembler
}

// NewAssembler constructs the video generation stage handler.
func NewAssembler(cfg *config.Config, logger *slog.Logger, assembler MediaAssembler) *Assembler {
	return &Assembler{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "videoassembly"),
		assembler: assembler,
	}
}

// Status returns the generating status this handler owns.
func (a *Assembler) Status() episode.Status {
	return episode.StatusGeneratingVideo
}

// Prepare verifies the upstream stage left a narration file on disk.
func (a *Assembler) Prepare(_ context.Context, ep *episode.Episode) error {
	if ep == nil {
		return services.Wrap(services.ErrInternal, stageName, "prepare", "episode is nil", nil)
	}
	if strings.TrimSpace(ep.AudioPath) == "" {
		return services.Wrap(services.ErrInvalidInput, stageName, "prepare", "episode has no audio", nil)
	}
	if _, err := os.Stat(ep.AudioPath); err != nil {
		return services.Wrap(services.ErrInvalidInput, stageName, "prepare", "audio file missing", err)
	}
	return nil
}

// Execute renders the video and attaches its path plus render metadata
// (duration, file size, thumbnail) to the episode.
func (a *Assembler) Execute(ctx context.Context, ep *episode.Episode) error {
	logger := logging.WithContext(ctx, a.logger)

	outPath := filepath.Join(a.cfg.VideoOutputDir(), ep.ID+".mp4")
	result, err := a.assembler.Assemble(ctx, media.AssembleRequest{
		AudioPath:     ep.AudioPath,
		Title:         ep.Title,
		OutputPath:    outPath,
		ThumbnailPath: filepath.Join(a.cfg.VideoOutputDir(), ep.ID+".jpg"),
	})
	if err != nil {
		return err
	}
	ep.VideoPath = result.OutputPath

	metadata, err := json.Marshal(map[string]any{
		"duration_seconds": result.DurationSeconds,
		"file_size_mb":     result.FileSizeMB,
		"thumbnail_path":   result.ThumbnailPath,
	})
	if err == nil {
		ep.MetadataJSON = string(metadata)
	}

	logger.Info("video assembled",
		logging.String("video_path", result.OutputPath),
		logging.Float64("duration_seconds", result.DurationSeconds),
		logging.Float64("file_size_mb", result.FileSizeMB),
	)
	return nil
}

// HealthCheck reports whether the rendering toolchain is usable.
func (a *Assembler) HealthCheck(ctx context.Context) stage.Health {
	if err := a.assembler.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(stageName, err.Error())
	}
	return stage.Healthy(stageName)
}
