package episode

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AppendLog records one audit trail entry for an episode. Entries are
// append-only; nothing in the system updates or deletes them short of the
// episode row itself being removed.
func (s *Store) AppendLog(ctx context.Context, entry *LogEntry) error {
	if entry == nil {
		return fmt.Errorf("log entry is nil")
	}
	now := time.Now().UTC()
	entry.CreatedAt = now

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO generation_logs (
            episode_id, stage, event_type, message, error_kind,
            attempt, execution_time_ms, metadata_json, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.EpisodeID,
		entry.Stage,
		string(entry.EventType),
		nullableString(entry.Message),
		nullableString(entry.ErrorKind),
		entry.Attempt,
		entry.ExecutionTimeMS,
		nullableString(entry.MetadataJSON),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append generation log: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

// LogsForEpisode returns the audit trail for one episode in insertion order.
func (s *Store) LogsForEpisode(ctx context.Context, episodeID string) ([]*LogEntry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, episode_id, stage, event_type, message, error_kind,
            attempt, execution_time_ms, metadata_json, created_at
         FROM generation_logs WHERE episode_id = ? ORDER BY id`,
		episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("query generation logs: %w", err)
	}
	defer rows.Close()

	var entries []*LogEntry
	for rows.Next() {
		entry, err := scanLogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CountLogs returns the number of audit entries recorded for an episode.
func (s *Store) CountLogs(ctx context.Context, episodeID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM generation_logs WHERE episode_id = ?`,
		episodeID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count generation logs: %w", err)
	}
	return count, nil
}

func scanLogEntry(scanner interface{ Scan(dest ...any) error }) (*LogEntry, error) {
	var (
		id         int64
		episodeID  string
		stage      string
		eventType  string
		message    sql.NullString
		errorKind  sql.NullString
		attempt    sql.NullInt64
		execTimeMS sql.NullInt64
		metadata   sql.NullString
		createdRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&episodeID,
		&stage,
		&eventType,
		&message,
		&errorKind,
		&attempt,
		&execTimeMS,
		&metadata,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	entry := &LogEntry{
		ID:              id,
		EpisodeID:       episodeID,
		Stage:           stage,
		EventType:       EventType(eventType),
		Message:         message.String,
		ErrorKind:       errorKind.String,
		Attempt:         int(attempt.Int64),
		ExecutionTimeMS: execTimeMS.Int64,
		MetadataJSON:    metadata.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		entry.CreatedAt = created
	}
	return entry, nil
}
