// Package scriptgen implements the script generation stage. It prompts the
// configured LLM for a structured script document and attaches the result to
// the episode.
package scriptgen

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tubecraft/internal/config"
	"tubecraft/internal/episode"
	"tubecraft/internal/logging"
	"tubecraft/internal/services"
	"tubecraft/internal/stage"
)

// ScriptClient is the LLM surface the generator needs.
type ScriptClient interface {
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, target any) error
	HealthCheck(ctx context.Context) error
}

// TemplateSource supplies stored prompt templates by content style. The
// episode store satisfies this.
type TemplateSource interface {
	TemplateForStyle(ctx context.Context, style episode.ContentStyle) (*episode.ContentTemplate, error)
}

// Generator produces episode scripts via the LLM.
type Generator struct {
	cfg       *config.Config
	logger    *slog.Logger
	client    ScriptClient
	templates TemplateSource
}

// NewGenerator constructs the script generation stage handler. templates may
// be nil, in which case the built-in style prompts are used unconditionally.
func NewGenerator(cfg *config.Config, logger *slog.Logger, client ScriptClient, templates TemplateSource) *Generator {
	return &Generator{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "scriptgen"),
		client:    client,
		templates: templates,
	}
}

// Status returns the generating status this handler owns.
func (g *Generator) Status() episode.Status {
	return episode.StatusGeneratingScript
}

// Prepare validates the episode carries enough material to prompt with.
func (g *Generator) Prepare(_ context.Context, ep *episode.Episode) error {
	if ep == nil {
		return services.Wrap(services.ErrInternal, stageName, "prepare", "episode is nil", nil)
	}
	if strings.TrimSpace(ep.Title) == "" && strings.TrimSpace(ep.Topic) == "" {
		return services.Wrap(services.ErrInvalidInput, stageName, "prepare", "episode needs a title or topic", nil)
	}
	if _, ok := episode.ParseStyle(string(ep.ContentStyle)); !ok {
		return services.Wrap(services.ErrInvalidInput, stageName, "prepare",
			fmt.Sprintf("unknown content style %q", ep.ContentStyle), nil)
	}
	return nil
}

// Execute prompts the LLM and stores the validated script on the episode.
func (g *Generator) Execute(ctx context.Context, ep *episode.Episode) error {
	logger := logging.WithContext(ctx, g.logger)

	systemPrompt := g.systemPrompt(ctx, ep.ContentStyle)
	userPrompt := buildUserPrompt(ep)

	var script episode.Script
	if err := g.client.GenerateJSON(ctx, systemPrompt, userPrompt, &script); err != nil {
		return err
	}
	if err := script.Validate(); err != nil {
		return services.Wrap(services.ErrTransient, stageName, "execute", "model returned malformed script", err)
	}
	if script.TotalDurationSeconds <= 0 {
		script.TotalDurationSeconds = sumSectionDurations(&script)
	}

	encoded, err := script.Encode()
	if err != nil {
		return services.Wrap(services.ErrInternal, stageName, "execute", "encode script", err)
	}
	ep.ScriptJSON = encoded
	if strings.TrimSpace(ep.Title) == "" {
		ep.Title = script.Title
	}

	if err := g.writeScriptFile(ep.ID, encoded); err != nil {
		logger.Warn("failed to persist script document", logging.Error(err))
	}

	logger.Info("script generated",
		logging.Int("sections", len(script.Sections)),
		logging.Float64("total_duration_seconds", script.TotalDurationSeconds),
	)
	return nil
}

// HealthCheck reports whether the LLM backend is usable.
func (g *Generator) HealthCheck(ctx context.Context) stage.Health {
	if err := g.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(stageName, err.Error())
	}
	return stage.Healthy(stageName)
}

func (g *Generator) systemPrompt(ctx context.Context, style episode.ContentStyle) string {
	if g.templates != nil {
		tpl, err := g.templates.TemplateForStyle(ctx, style)
		if err == nil && tpl != nil {
			if text := templatePrompt(tpl); text != "" {
				return scriptFormatInstructions + "\n\n" + text
			}
		}
	}
	return scriptFormatInstructions + "\n\n" + stylePrompt(style)
}

func (g *Generator) writeScriptFile(episodeID, encoded string) error {
	dir := g.cfg.ScriptOutputDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, episodeID+".json"), []byte(encoded), 0o644)
}

func sumSectionDurations(script *episode.Script) float64 {
	var total float64
	for _, section := range script.Sections {
		total += section.DurationSeconds
	}
	return total
}
