// Package api exposes the control surface shared by the HTTP server and the
// CLI: episode submission, inspection, cancellation, and queue statistics.
package api

import (
	"context"
	"log/slog"
	"strings"

	"tubecraft/internal/config"
	"tubecraft/internal/episode"
	"tubecraft/internal/logging"
	"tubecraft/internal/services"
	"tubecraft/internal/stage"
)

// Submitter is the slice of the scheduler the control surface needs: a nudge
// after new drafts and stage health for readiness reporting.
type Submitter interface {
	Submit()
	Health(ctx context.Context) []stage.Health
}

// Service wraps the episode store with validation and scheduler notification.
type Service struct {
	cfg    *config.Config
	store  *episode.Store
	sched  Submitter
	logger *slog.Logger
}

// NewService constructs the control service. sched may be nil when the caller
// operates on the store without a running scheduler, as the CLI does.
func NewService(cfg *config.Config, store *episode.Store, sched Submitter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		cfg:    cfg,
		store:  store,
		sched:  sched,
		logger: logging.NewComponentLogger(logger, "api"),
	}
}

// CreateEpisodeRequest carries the fields accepted for a new draft.
type CreateEpisodeRequest struct {
	Title                 string   `json:"title"`
	Topic                 string   `json:"topic"`
	ContentStyle          string   `json:"content_style"`
	TargetDurationMinutes int      `json:"target_duration_minutes"`
	Tags                  []string `json:"tags"`
}

// CreateEpisode validates the request, inserts a draft, and nudges the
// scheduler so the draft is admitted without waiting for a poll tick.
func (s *Service) CreateEpisode(ctx context.Context, req CreateEpisodeRequest) (*episode.Episode, error) {
	title := strings.TrimSpace(req.Title)
	topic := strings.TrimSpace(req.Topic)
	if title == "" && topic == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "", "create",
			"either title or topic is required", nil)
	}
	style, ok := episode.ParseStyle(req.ContentStyle)
	if !ok {
		return nil, services.Wrap(services.ErrInvalidInput, "", "create",
			"unknown content style "+req.ContentStyle, nil)
	}
	if req.TargetDurationMinutes < 0 {
		return nil, services.Wrap(services.ErrInvalidInput, "", "create",
			"target duration must be positive", nil)
	}

	ep, err := s.store.NewEpisode(ctx, title, topic, style, req.TargetDurationMinutes, req.Tags...)
	if err != nil {
		return nil, err
	}
	if s.sched != nil {
		s.sched.Submit()
	}
	s.logger.Info("episode draft created",
		logging.String(logging.FieldEpisodeID, ep.ID),
		logging.String("title", ep.Title),
		logging.String("content_style", string(ep.ContentStyle)),
	)
	return ep, nil
}

// GetEpisode returns a snapshot of one episode.
func (s *Service) GetEpisode(ctx context.Context, id string) (*episode.Episode, error) {
	ep, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ep == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "get", "episode "+id, nil)
	}
	return ep, nil
}

// CancelEpisode requests cancellation. Drafts cancel immediately; generating
// episodes are flagged and finish at the next stage boundary.
func (s *Service) CancelEpisode(ctx context.Context, id string) (*episode.Episode, error) {
	ep, err := s.store.RequestCancel(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("episode cancellation requested",
		logging.String(logging.FieldEpisodeID, id),
		logging.String("status", string(ep.Status)),
	)
	return ep, nil
}

// ListEpisodes returns episodes oldest first, optionally filtered by status.
func (s *Service) ListEpisodes(ctx context.Context, statuses ...episode.Status) ([]*episode.Episode, error) {
	return s.store.List(ctx, statuses...)
}

// EpisodeLogs returns the audit trail for one episode in append order.
func (s *Service) EpisodeLogs(ctx context.Context, id string) ([]*episode.LogEntry, error) {
	if _, err := s.GetEpisode(ctx, id); err != nil {
		return nil, err
	}
	return s.store.LogsForEpisode(ctx, id)
}

// RetryEpisodes moves failed episodes back to draft and wakes the scheduler.
// With no ids every failed episode is retried.
func (s *Service) RetryEpisodes(ctx context.Context, ids ...string) (int64, error) {
	count, err := s.store.RetryFailed(ctx, ids...)
	if err != nil {
		return 0, err
	}
	if count > 0 && s.sched != nil {
		s.sched.Submit()
	}
	return count, nil
}

// StatsReport aggregates the store's derived views for the stats surfaces.
type StatsReport struct {
	Summary                  episode.StatsSummary                            `json:"summary"`
	ByStyle                  map[episode.ContentStyle]map[episode.Status]int `json:"by_style"`
	AverageGenerationSeconds float64                                         `json:"average_generation_seconds"`
}

// Stats returns queue counts by lifecycle phase, the per-style status
// breakdown, and the mean completed generation time.
func (s *Service) Stats(ctx context.Context) (StatsReport, error) {
	summary, err := s.store.Summary(ctx)
	if err != nil {
		return StatsReport{}, err
	}
	byStyle, err := s.store.StatsByStyle(ctx)
	if err != nil {
		return StatsReport{}, err
	}
	avg, err := s.store.AverageGenerationSeconds(ctx)
	if err != nil {
		return StatsReport{}, err
	}
	return StatsReport{
		Summary:                  summary,
		ByStyle:                  byStyle,
		AverageGenerationSeconds: avg,
	}, nil
}

// RecentEpisodes returns the most recently touched episodes first.
func (s *Service) RecentEpisodes(ctx context.Context, limit int) ([]*episode.Episode, error) {
	return s.store.RecentEpisodes(ctx, limit)
}

// Health reports stage readiness. Without a scheduler attached the list is
// empty and the caller reports store-only health.
func (s *Service) Health(ctx context.Context) []stage.Health {
	if s.sched == nil {
		return nil
	}
	return s.sched.Health(ctx)
}
