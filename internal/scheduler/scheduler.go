// Package scheduler admits draft episodes into a bounded worker pool and
// drives each one through the generation stages in order.
//
// Admission is FIFO over drafts by creation time. An episode holds one worker
// slot for its entire stage sequence; stages never run concurrently for the
// same episode. Cancellation is cooperative and honored at stage boundaries.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tubecraft/internal/config"
	"tubecraft/internal/episode"
	"tubecraft/internal/logging"
	"tubecraft/internal/retry"
	"tubecraft/internal/stage"
)

// Scheduler coordinates episode generation using registered stage handlers.
type Scheduler struct {
	cfg    *config.Config
	store  *episode.Store
	logger *slog.Logger
	policy *retry.Policy

	handlers []stage.Handler
	byStatus map[episode.Status]stage.Handler

	slots        chan struct{}
	wake         chan struct{}
	pollInterval time.Duration
	errInterval  time.Duration
	sleep        func(context.Context, time.Duration) error

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// New constructs a scheduler. Handlers must cover the three generating
// statuses; they are consulted by the status each one reports.
func New(cfg *config.Config, store *episode.Store, logger *slog.Logger, handlers ...stage.Handler) *Scheduler {
	slots := cfg.Scheduler.MaxConcurrentJobs
	if slots <= 0 {
		slots = 3
	}
	pollInterval := time.Duration(cfg.Scheduler.QueuePollInterval) * time.Second
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	errInterval := time.Duration(cfg.Scheduler.ErrorRetryInterval) * time.Second
	if errInterval <= 0 {
		errInterval = 10 * time.Second
	}

	byStatus := make(map[episode.Status]stage.Handler, len(handlers))
	for _, handler := range handlers {
		byStatus[handler.Status()] = handler
	}

	return &Scheduler{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "scheduler"),
		policy:       retry.NewPolicy(cfg.Scheduler),
		handlers:     handlers,
		byStatus:     byStatus,
		slots:        make(chan struct{}, slots),
		wake:         make(chan struct{}, 1),
		pollInterval: pollInterval,
		errInterval:  errInterval,
		sleep:        ctxSleep,
	}
}

// Submit nudges the dispatcher so a freshly created draft is admitted without
// waiting for the next poll tick.
func (s *Scheduler) Submit() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Slots returns the configured worker pool size.
func (s *Scheduler) Slots() int {
	return cap(s.slots)
}

// LastError returns the most recent dispatcher or stage error.
func (s *Scheduler) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Scheduler) setLastError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// Health reports readiness of every registered stage handler.
func (s *Scheduler) Health(ctx context.Context) []stage.Health {
	out := make([]stage.Health, 0, len(s.handlers))
	for _, handler := range s.handlers {
		out = append(out, handler.HealthCheck(ctx))
	}
	return out
}
