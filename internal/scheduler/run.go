package scheduler

import (
	"context"
	"errors"
	"time"

	"tubecraft/internal/episode"
	"tubecraft/internal/logging"
)

// Start begins background processing. It returns once the dispatcher is
// running; call Stop to shut down.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	if len(s.byStatus) == 0 {
		s.mu.Unlock()
		return errors.New("scheduler stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.runDispatcher(runCtx)
	return nil
}

// Stop terminates background processing and waits for in-flight episodes to
// reach a stage boundary.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// runDispatcher admits drafts in FIFO order, one worker slot per episode.
func (s *Scheduler) runDispatcher(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case s.slots <- struct{}{}:
		}

		ep, err := s.claimNextDraft(ctx)
		if err != nil {
			<-s.slots
			if ctx.Err() != nil {
				return
			}
			s.setLastError(err)
			s.logger.Error("failed to admit next draft",
				logging.Error(err),
				logging.String(logging.FieldEventType, "admission_failed"),
			)
			s.waitForWork(ctx, s.errInterval)
			continue
		}
		if ep == nil {
			<-s.slots
			s.waitForWork(ctx, s.pollInterval)
			continue
		}

		s.wg.Add(1)
		go func(ep *episode.Episode) {
			defer s.wg.Done()
			defer func() { <-s.slots }()
			s.runEpisode(ctx, ep)
		}(ep)
	}
}

// claimNextDraft takes the oldest admissible draft and moves it into the
// first generating status. Only the dispatcher claims, so admission order is
// strictly creation order.
func (s *Scheduler) claimNextDraft(ctx context.Context) (*episode.Episode, error) {
	draft, err := s.store.NextDraft(ctx)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, nil
	}
	return s.store.Transition(ctx, draft.ID, episode.StatusDraft, episode.StatusGeneratingScript)
}

func (s *Scheduler) waitForWork(ctx context.Context, wait time.Duration) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-s.wake:
	case <-timer.C:
	}
}
