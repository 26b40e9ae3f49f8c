package episode

import (
	"context"
	"fmt"
	"time"

	"tubecraft/internal/services"
)

// Transition moves an episode from one status to another after validating the
// edge against the state machine. The from status must match the stored row,
// which guards against concurrent writers. Retry self-edges on generating
// states bump retry_count; forward edges out of draft stamp
// generation_started_at and the completed edge stamps completed_at.
func (s *Store) Transition(ctx context.Context, id string, from, to Status) (*Episode, error) {
	if !CanTransition(from, to) {
		return nil, services.Wrap(services.ErrInternal, "", "transition",
			fmt.Sprintf("illegal status transition %s -> %s", from, to), nil)
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	query := `UPDATE episodes SET status = ?, updated_at = ?`
	args := []any{to, timestamp}

	if from.Generating() && from == to {
		query += `, retry_count = retry_count + 1`
	}
	// The attempt budget is per stage, so advancing out of a generating
	// status starts the next stage with a clean slate.
	if next, ok := NextStatus(from); ok && from.Generating() && next == to {
		query += `, retry_count = 0`
	}
	if from == StatusDraft && to == StatusGeneratingScript {
		query += `, generation_started_at = ?`
		args = append(args, timestamp)
	}
	if to == StatusCompleted {
		query += `, completed_at = ?, error_message = NULL`
		args = append(args, timestamp)
	}

	query += ` WHERE id = ? AND status = ?`
	args = append(args, id, from)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transition episode: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		current, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if current == nil {
			return nil, services.Wrap(services.ErrNotFound, "", "transition", "episode "+id, nil)
		}
		return nil, services.Wrap(services.ErrInternal, "", "transition",
			fmt.Sprintf("episode %s is %s, expected %s", id, current.Status, from), nil)
	}

	return s.GetByID(ctx, id)
}

// RequestCancel sets the cancel flag on a draft or generating episode. Draft
// episodes are cancelled immediately; generating episodes are flagged and the
// scheduler finalizes the cancellation at the next stage boundary. Requests
// against terminal episodes return ErrAlreadyTerminal.
func (s *Store) RequestCancel(ctx context.Context, id string) (*Episode, error) {
	ep, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ep == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "cancel", "episode "+id, nil)
	}
	if ep.Status.Terminal() {
		return nil, services.Wrap(services.ErrAlreadyTerminal, "", "cancel",
			fmt.Sprintf("episode %s is %s", id, ep.Status), nil)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if ep.Status == StatusDraft {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE episodes SET status = ?, cancel_requested = 1, updated_at = ? WHERE id = ? AND status = ?`,
			StatusCancelled,
			timestamp,
			id,
			StatusDraft,
		)
		if err != nil {
			return nil, fmt.Errorf("cancel draft: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			// Lost a race with the scheduler; flag it for the stage boundary check.
			return s.flagCancel(ctx, id, timestamp)
		}
		return s.GetByID(ctx, id)
	}

	return s.flagCancel(ctx, id, timestamp)
}

// flagCancel raises cancel_requested on a non-terminal row. The status guard
// keeps a row that reached a terminal state after the caller's check from
// being touched at all.
func (s *Store) flagCancel(ctx context.Context, id, timestamp string) (*Episode, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE episodes SET cancel_requested = 1, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?, ?)`,
		timestamp,
		id,
		StatusCompleted,
		StatusFailed,
		StatusCancelled,
	)
	if err != nil {
		return nil, fmt.Errorf("flag cancel: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		current, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if current == nil {
			return nil, services.Wrap(services.ErrNotFound, "", "cancel", "episode "+id, nil)
		}
		return nil, services.Wrap(services.ErrAlreadyTerminal, "", "cancel",
			fmt.Sprintf("episode %s is %s", id, current.Status), nil)
	}
	return s.GetByID(ctx, id)
}

// FinalizeCancel moves a flagged generating episode to cancelled. Called by
// the scheduler at stage boundaries.
func (s *Store) FinalizeCancel(ctx context.Context, id string) (*Episode, error) {
	ep, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ep == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "cancel", "episode "+id, nil)
	}
	if ep.Status.Terminal() {
		return ep, nil
	}
	return s.Transition(ctx, id, ep.Status, StatusCancelled)
}

// RetryFailed resets failed episodes back to draft so the scheduler can pick
// them up again. With no ids every failed episode resets; with ids only the
// matching failed episodes reset.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE episodes
            SET status = ?, retry_count = 0, error_message = NULL, cancel_requested = 0,
                generation_started_at = NULL, updated_at = ?
            WHERE status = ?`,
			StatusDraft,
			timestamp,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed episodes: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusDraft, timestamp)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE episodes
        SET status = ?, retry_count = 0, error_message = NULL, cancel_requested = 0,
            generation_started_at = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusFailed) + `'`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected episodes: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuckGenerating returns episodes left mid-pipeline by an unclean
// shutdown back to draft so they re-enter the queue.
func (s *Store) ResetStuckGenerating(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE episodes
         SET status = ?, retry_count = 0, error_message = NULL,
             generation_started_at = NULL, updated_at = ?
         WHERE status IN (?, ?, ?)`,
		StatusDraft,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusGeneratingScript,
		StatusGeneratingAudio,
		StatusGeneratingVideo,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck episodes: %w", err)
	}
	return res.RowsAffected()
}
