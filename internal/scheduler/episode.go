package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tubecraft/internal/episode"
	"tubecraft/internal/logging"
	"tubecraft/internal/services"
	"tubecraft/internal/stage"
)

// runEpisode drives one admitted episode through the stage sequence while it
// holds its worker slot. Cancellation is checked at every stage boundary; a
// scheduler shutdown leaves the episode in its generating status so startup
// recovery can requeue it.
func (s *Scheduler) runEpisode(ctx context.Context, ep *episode.Episode) {
	logger := s.logger.With(logging.String(logging.FieldEpisodeID, ep.ID))
	logger.Info("episode admitted",
		logging.String("title", ep.Title),
		logging.String("content_style", string(ep.ContentStyle)),
	)

	current := ep
	for current != nil && current.Status.Generating() {
		if ctx.Err() != nil {
			logger.Warn("shutdown before stage start, leaving episode for recovery",
				logging.String(logging.FieldStage, string(current.Status)))
			return
		}

		fresh, err := s.store.GetByID(ctx, current.ID)
		if err != nil {
			s.setLastError(err)
			logger.Error("failed to refresh episode", logging.Error(err))
			return
		}
		if fresh == nil || fresh.Status.Terminal() {
			return
		}
		if fresh.CancelRequested {
			s.finalizeCancellation(ctx, fresh)
			return
		}

		handler, ok := s.byStatus[fresh.Status]
		if !ok {
			s.failEpisode(ctx, fresh, services.Wrap(services.ErrInternal,
				string(fresh.Status), "dispatch", "no handler registered for status", nil))
			return
		}

		next, err := s.runStage(ctx, handler, fresh)
		if err != nil {
			// Terminal failures and cancellations were persisted inside
			// runStage; shutdown leaves the row for startup recovery.
			return
		}
		current = next
	}

	if current != nil && current.Status == episode.StatusCompleted {
		logger.Info("episode completed",
			logging.String("video_path", current.VideoPath),
			logging.String(logging.FieldEventType, "episode_completed"),
		)
	}
}

// runStage runs one handler to completion, retrying failed attempts as the
// policy allows. On success it returns the episode advanced to the next
// status; on terminal failure, cancellation, or shutdown it returns an error
// after persisting whatever outcome applies.
func (s *Scheduler) runStage(ctx context.Context, handler stage.Handler, ep *episode.Episode) (*episode.Episode, error) {
	stageName := string(ep.Status)
	stageCtx := services.WithEpisodeID(ctx, ep.ID)
	stageCtx = services.WithStage(stageCtx, stageName)
	stageCtx = services.WithRequestID(stageCtx, uuid.NewString())
	logger := logging.WithContext(stageCtx, s.logger)

	for {
		attempt := ep.RetryCount + 1
		s.recordEvent(ctx, &episode.LogEntry{
			EpisodeID: ep.ID,
			Stage:     stageName,
			EventType: episode.EventStarted,
			Message:   fmt.Sprintf("attempt %d", attempt),
			Attempt:   attempt,
		})
		logger.Info("stage started", logging.Int(logging.FieldAttempt, attempt))

		start := time.Now()
		attemptCtx := stageCtx
		var cancelAttempt context.CancelFunc
		if timeout := s.stageTimeout(ep.Status); timeout > 0 {
			attemptCtx, cancelAttempt = context.WithTimeout(stageCtx, timeout)
		}
		err := executeStage(attemptCtx, handler, ep)
		if cancelAttempt != nil {
			cancelAttempt()
		}
		elapsedMS := time.Since(start).Milliseconds()
		if err == nil {
			if updateErr := s.store.SaveStageOutputs(ctx, ep); updateErr != nil {
				err = updateErr
			}
		}

		if err == nil {
			s.recordEvent(ctx, &episode.LogEntry{
				EpisodeID:       ep.ID,
				Stage:           stageName,
				EventType:       episode.EventSucceeded,
				Attempt:         attempt,
				ExecutionTimeMS: elapsedMS,
			})
			logger.Info("stage succeeded",
				logging.Int(logging.FieldAttempt, attempt),
				logging.Int64("execution_time_ms", elapsedMS),
			)

			next, ok := episode.NextStatus(ep.Status)
			if !ok {
				failure := services.Wrap(services.ErrInternal, stageName, "advance",
					"no successor status", nil)
				s.failEpisode(ctx, ep, failure)
				return nil, failure
			}
			advanced, terr := s.store.Transition(ctx, ep.ID, ep.Status, next)
			if terr != nil {
				s.setLastError(terr)
				logger.Error("failed to advance episode", logging.Error(terr))
				return nil, terr
			}
			return advanced, nil
		}

		if ctx.Err() != nil {
			logger.Warn("stage interrupted by shutdown", logging.Error(err))
			return nil, err
		}

		kind := services.Classify(err)
		s.recordEvent(ctx, &episode.LogEntry{
			EpisodeID:       ep.ID,
			Stage:           stageName,
			EventType:       episode.EventFailed,
			Message:         err.Error(),
			ErrorKind:       string(kind),
			Attempt:         attempt,
			ExecutionTimeMS: elapsedMS,
		})
		logger.Warn("stage attempt failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, string(kind)),
			logging.Int(logging.FieldAttempt, attempt),
		)

		decision := s.policy.Decide(err, attempt)
		if !decision.Retry {
			s.failEpisode(ctx, ep, err)
			return nil, err
		}

		s.recordEvent(ctx, &episode.LogEntry{
			EpisodeID:    ep.ID,
			Stage:        stageName,
			EventType:    episode.EventRetryScheduled,
			Message:      fmt.Sprintf("retrying in %s", decision.Backoff),
			ErrorKind:    string(decision.Kind),
			Attempt:      attempt,
			MetadataJSON: fmt.Sprintf(`{"backoff_ms":%d}`, decision.Backoff.Milliseconds()),
		})
		retried, terr := s.store.Transition(ctx, ep.ID, ep.Status, ep.Status)
		if terr != nil {
			s.setLastError(terr)
			logger.Error("failed to record retry", logging.Error(terr))
			return nil, terr
		}
		ep = retried

		if sleepErr := s.sleep(ctx, decision.Backoff); sleepErr != nil {
			return nil, sleepErr
		}

		fresh, gerr := s.store.GetByID(ctx, ep.ID)
		if gerr != nil {
			s.setLastError(gerr)
			return nil, gerr
		}
		if fresh == nil || fresh.Status.Terminal() {
			return nil, services.ErrCancelled
		}
		if fresh.CancelRequested {
			s.finalizeCancellation(ctx, fresh)
			return nil, services.ErrCancelled
		}
		ep = fresh
	}
}

// stageTimeout maps a generating status to its configured ceiling. Expiry is
// a retryable timeout failure, distinct from shutdown or user cancellation.
func (s *Scheduler) stageTimeout(status episode.Status) time.Duration {
	var seconds int
	switch status {
	case episode.StatusGeneratingScript:
		seconds = s.cfg.Ollama.TimeoutSeconds
	case episode.StatusGeneratingAudio:
		seconds = s.cfg.Speech.TimeoutSeconds
	case episode.StatusGeneratingVideo:
		seconds = s.cfg.Video.TimeoutSeconds
	}
	return time.Duration(seconds) * time.Second
}

func executeStage(ctx context.Context, handler stage.Handler, ep *episode.Episode) error {
	if err := handler.Prepare(ctx, ep); err != nil {
		return err
	}
	return handler.Execute(ctx, ep)
}

// failEpisode records a terminal failure: status failed plus the error
// message on the row.
func (s *Scheduler) failEpisode(ctx context.Context, ep *episode.Episode, cause error) {
	stageName := string(ep.Status)
	failed, err := s.store.Transition(ctx, ep.ID, ep.Status, episode.StatusFailed)
	if err != nil {
		s.setLastError(err)
		s.logger.Error("failed to mark episode failed",
			logging.Error(err),
			logging.String(logging.FieldEpisodeID, ep.ID),
		)
		return
	}
	failed.SetFailed(cause.Error())
	if err := s.store.Update(ctx, failed); err != nil {
		s.setLastError(err)
		s.logger.Error("failed to persist failure message",
			logging.Error(err),
			logging.String(logging.FieldEpisodeID, ep.ID),
		)
	}
	s.logger.Error("episode failed",
		logging.Error(cause),
		logging.String(logging.FieldEpisodeID, ep.ID),
		logging.String(logging.FieldStage, stageName),
		logging.String(logging.FieldErrorKind, string(services.Classify(cause))),
	)
}

// finalizeCancellation honors a pending cancel request at a stage boundary.
func (s *Scheduler) finalizeCancellation(ctx context.Context, ep *episode.Episode) {
	stageName := string(ep.Status)
	if _, err := s.store.FinalizeCancel(ctx, ep.ID); err != nil {
		s.setLastError(err)
		s.logger.Error("failed to finalize cancellation",
			logging.Error(err),
			logging.String(logging.FieldEpisodeID, ep.ID),
		)
		return
	}
	s.recordEvent(ctx, &episode.LogEntry{
		EpisodeID: ep.ID,
		Stage:     stageName,
		EventType: episode.EventCancelled,
		Message:   "cancel request honored at stage boundary",
	})
	s.logger.Info("episode cancelled",
		logging.String(logging.FieldEpisodeID, ep.ID),
		logging.String(logging.FieldStage, stageName),
	)
}

// recordEvent appends to the audit log. Audit failures never abort the
// pipeline; they are logged and processing continues.
func (s *Scheduler) recordEvent(ctx context.Context, entry *episode.LogEntry) {
	if err := s.store.AppendLog(ctx, entry); err != nil {
		s.logger.Warn("failed to append generation log",
			logging.Error(err),
			logging.String(logging.FieldEpisodeID, entry.EpisodeID),
		)
	}
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
