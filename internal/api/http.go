package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"tubecraft/internal/episode"
	"tubecraft/internal/logging"
	"tubecraft/internal/services"
)

// Server is the HTTP control surface for a running daemon.
type Server struct {
	service *Service
	logger  *slog.Logger
	limiter *rate.Limiter
	router  *mux.Router
}

// NewServer builds the router with all control endpoints registered.
func NewServer(service *Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		service: service,
		logger:  logging.NewComponentLogger(logger, "api"),
		limiter: rate.NewLimiter(rate.Limit(20), 40),
	}

	router := mux.NewRouter()
	router.Use(s.requestContext, s.rateLimit)
	router.HandleFunc("/episodes", s.handleCreateEpisode).Methods(http.MethodPost)
	router.HandleFunc("/episodes", s.handleListEpisodes).Methods(http.MethodGet)
	router.HandleFunc("/episodes/{id}", s.handleGetEpisode).Methods(http.MethodGet)
	router.HandleFunc("/episodes/{id}/cancel", s.handleCancelEpisode).Methods(http.MethodPost)
	router.HandleFunc("/episodes/{id}/logs", s.handleEpisodeLogs).Methods(http.MethodGet)
	router.HandleFunc("/episodes/retry", s.handleRetryEpisodes).Methods(http.MethodPost)
	router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router = router
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := services.WithRequestID(r.Context(), uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCreateEpisode(w http.ResponseWriter, r *http.Request) {
	var req CreateEpisodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	ep, err := s.service.CreateEpisode(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEpisodeView(ep))
}

func (s *Server) handleGetEpisode(w http.ResponseWriter, r *http.Request) {
	ep, err := s.service.GetEpisode(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEpisodeView(ep))
}

func (s *Server) handleCancelEpisode(w http.ResponseWriter, r *http.Request) {
	ep, err := s.service.CancelEpisode(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEpisodeView(ep))
}

func (s *Server) handleListEpisodes(w http.ResponseWriter, r *http.Request) {
	var statuses []episode.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := episode.ParseStatus(raw)
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown status " + raw})
			return
		}
		statuses = append(statuses, status)
	}
	eps, err := s.service.ListEpisodes(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]episodeView, 0, len(eps))
	for _, ep := range eps {
		views = append(views, toEpisodeView(ep))
	}
	writeJSON(w, http.StatusOK, listBody{Episodes: views, Count: len(views)})
}

func (s *Server) handleEpisodeLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.EpisodeLogs(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]logView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, toLogView(entry))
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": views, "count": len(views)})
}

func (s *Server) handleRetryEpisodes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}
	}
	count, err := s.service.RetryEpisodes(r.Context(), req.IDs...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"retried": count})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := s.service.Health(r.Context())
	ready := true
	stages := make([]healthView, 0, len(checks))
	for _, check := range checks {
		if !check.Ready {
			ready = false
		}
		stages = append(stages, healthView{Name: check.Name, Ready: check.Ready, Detail: check.Detail})
	}
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"ready": ready, "stages": stages})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrAlreadyTerminal):
		status = http.StatusConflict
	case errors.Is(err, services.ErrResourceExhausted):
		status = http.StatusTooManyRequests
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			logging.Error(err),
			logging.String("path", r.URL.Path),
		)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error string `json:"error"`
}

type listBody struct {
	Episodes []episodeView `json:"episodes"`
	Count    int           `json:"count"`
}

type episodeView struct {
	ID                    string   `json:"id"`
	Title                 string   `json:"title"`
	Topic                 string   `json:"topic,omitempty"`
	ContentStyle          string   `json:"content_style"`
	TargetDurationMinutes int      `json:"target_duration_minutes"`
	Status                string   `json:"status"`
	RetryCount            int      `json:"retry_count"`
	ErrorMessage          string   `json:"error_message,omitempty"`
	AudioPath             string   `json:"audio_path,omitempty"`
	VideoPath             string   `json:"video_path,omitempty"`
	Tags                  []string `json:"tags,omitempty"`
	CancelRequested       bool     `json:"cancel_requested,omitempty"`
	CreatedAt             string   `json:"created_at"`
	UpdatedAt             string   `json:"updated_at"`
	GenerationStartedAt   *string  `json:"generation_started_at,omitempty"`
	CompletedAt           *string  `json:"completed_at,omitempty"`
}

func toEpisodeView(ep *episode.Episode) episodeView {
	view := episodeView{
		ID:                    ep.ID,
		Title:                 ep.Title,
		Topic:                 ep.Topic,
		ContentStyle:          string(ep.ContentStyle),
		TargetDurationMinutes: ep.TargetDurationMinutes,
		Status:                string(ep.Status),
		RetryCount:            ep.RetryCount,
		ErrorMessage:          ep.ErrorMessage,
		AudioPath:             ep.AudioPath,
		VideoPath:             ep.VideoPath,
		Tags:                  ep.Tags,
		CancelRequested:       ep.CancelRequested,
		CreatedAt:             ep.CreatedAt.Format(time.RFC3339),
		UpdatedAt:             ep.UpdatedAt.Format(time.RFC3339),
	}
	if ep.GenerationStartedAt != nil {
		started := ep.GenerationStartedAt.Format(time.RFC3339)
		view.GenerationStartedAt = &started
	}
	if ep.CompletedAt != nil {
		completed := ep.CompletedAt.Format(time.RFC3339)
		view.CompletedAt = &completed
	}
	return view
}

type healthView struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

type logView struct {
	Stage           string `json:"stage"`
	EventType       string `json:"event_type"`
	Message         string `json:"message,omitempty"`
	ErrorKind       string `json:"error_kind,omitempty"`
	Attempt         int    `json:"attempt,omitempty"`
	ExecutionTimeMS int64  `json:"execution_time_ms,omitempty"`
	CreatedAt       string `json:"created_at"`
}

func toLogView(entry *episode.LogEntry) logView {
	return logView{
		Stage:           entry.Stage,
		EventType:       string(entry.EventType),
		Message:         entry.Message,
		ErrorKind:       entry.ErrorKind,
		Attempt:         entry.Attempt,
		ExecutionTimeMS: entry.ExecutionTimeMS,
		CreatedAt:       entry.CreatedAt.Format(time.RFC3339),
	}
}
