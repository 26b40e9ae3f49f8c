package episode

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"tubecraft/internal/config"
)

// Store manages episode persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the episode database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "episodes.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewEpisode inserts a draft episode and returns the stored row. Tags are
// treated as a set: trimmed, de-duplicated, and stored without order.
func (s *Store) NewEpisode(ctx context.Context, title, topic string, style ContentStyle, targetDurationMinutes int, tags ...string) (*Episode, error) {
	if style == "" {
		style = StyleEducational
	}
	if targetDurationMinutes <= 0 {
		targetDurationMinutes = config.DefaultTargetDurationMinutes
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO episodes (
            id, title, topic, content_style, target_duration_minutes, status,
            retry_count, tags, cancel_requested, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		title,
		nullableString(topic),
		string(style),
		targetDurationMinutes,
		StatusDraft,
		0,
		encodeTags(normalizeTags(tags)),
		0,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert episode: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches an episode by identifier. A missing row yields (nil, nil).
func (s *Store) GetByID(ctx context.Context, id string) (*Episode, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id)
	ep, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return ep, nil
}

// Update persists changes to an existing episode.
func (s *Store) Update(ctx context.Context, ep *Episode) error {
	if ep == nil {
		return errors.New("episode is nil")
	}
	ep.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE episodes
         SET title = ?, topic = ?, content_style = ?, target_duration_minutes = ?,
             status = ?, retry_count = ?, error_message = ?, script_json = ?,
             audio_path = ?, video_path = ?, metadata_json = ?, tags = ?,
             cancel_requested = ?, updated_at = ?, generation_started_at = ?,
             completed_at = ?
         WHERE id = ?`,
		ep.Title,
		nullableString(ep.Topic),
		string(ep.ContentStyle),
		ep.TargetDurationMinutes,
		ep.Status,
		ep.RetryCount,
		nullableString(ep.ErrorMessage),
		nullableString(ep.ScriptJSON),
		nullableString(ep.AudioPath),
		nullableString(ep.VideoPath),
		nullableString(ep.MetadataJSON),
		encodeTags(normalizeTags(ep.Tags)),
		boolToInt(ep.CancelRequested),
		ep.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(ep.GenerationStartedAt),
		nullableTime(ep.CompletedAt),
		ep.ID,
	)
	if err != nil {
		return fmt.Errorf("update episode: %w", err)
	}
	return nil
}

// SaveStageOutputs persists only the artifact fields a stage executor mutates.
// Status, retry_count, and cancel_requested stay untouched so a cancel flag
// raised while the stage ran is not overwritten.
func (s *Store) SaveStageOutputs(ctx context.Context, ep *Episode) error {
	if ep == nil {
		return errors.New("episode is nil")
	}
	ep.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE episodes
         SET title = ?, script_json = ?, audio_path = ?, video_path = ?,
             metadata_json = ?, updated_at = ?
         WHERE id = ?`,
		ep.Title,
		nullableString(ep.ScriptJSON),
		nullableString(ep.AudioPath),
		nullableString(ep.VideoPath),
		nullableString(ep.MetadataJSON),
		ep.UpdatedAt.Format(time.RFC3339Nano),
		ep.ID,
	)
	if err != nil {
		return fmt.Errorf("save stage outputs: %w", err)
	}
	return nil
}

// List returns episodes filtered by status set (or all episodes when no status
// is provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Episode, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + episodeColumns + ` FROM episodes`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []*Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

// NextDraft returns the oldest draft episode awaiting admission, or nil.
func (s *Store) NextDraft(ctx context.Context) (*Episode, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE status = ? AND cancel_requested = 0 ORDER BY created_at LIMIT 1`,
		StatusDraft,
	)
	ep, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next draft: %w", err)
	}
	return ep, nil
}

// Remove deletes an episode by identifier. Generation logs cascade.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM episodes WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete episode: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Stats returns a count of episodes grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM episodes GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("episode stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Summary aggregates episode state for diagnostic output.
func (s *Store) Summary(ctx context.Context) (StatsSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return StatsSummary{}, err
	}
	summary := StatsSummary{}
	for status, count := range stats {
		summary.Total += count
		switch status {
		case StatusDraft:
			summary.Draft += count
		case StatusCompleted:
			summary.Completed += count
		case StatusFailed:
			summary.Failed += count
		case StatusCancelled:
			summary.Cancelled += count
		default:
			if status.Generating() {
				summary.Generating += count
			}
		}
	}
	return summary, nil
}

const episodeColumns = "id, title, topic, content_style, target_duration_minutes, status, retry_count, error_message, script_json, audio_path, video_path, metadata_json, tags, cancel_requested, created_at, updated_at, generation_started_at, completed_at"

func scanEpisode(scanner interface{ Scan(dest ...any) error }) (*Episode, error) {
	var (
		id              string
		title           string
		topic           sql.NullString
		styleStr        string
		targetDuration  sql.NullInt64
		statusStr       string
		retryCount      sql.NullInt64
		errorMessage    sql.NullString
		scriptJSON      sql.NullString
		audioPath       sql.NullString
		videoPath       sql.NullString
		metadata        sql.NullString
		tagsRaw         sql.NullString
		cancelRequested sql.NullInt64
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		startedRaw      sql.NullString
		completedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&topic,
		&styleStr,
		&targetDuration,
		&statusStr,
		&retryCount,
		&errorMessage,
		&scriptJSON,
		&audioPath,
		&videoPath,
		&metadata,
		&tagsRaw,
		&cancelRequested,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	ep := &Episode{
		ID:                    id,
		Title:                 title,
		Topic:                 topic.String,
		ContentStyle:          ContentStyle(styleStr),
		TargetDurationMinutes: int(targetDuration.Int64),
		Status:                Status(statusStr),
		RetryCount:            int(retryCount.Int64),
		ErrorMessage:          errorMessage.String,
		ScriptJSON:            scriptJSON.String,
		AudioPath:             audioPath.String,
		VideoPath:             videoPath.String,
		MetadataJSON:          metadata.String,
		Tags:                  decodeTags(tagsRaw.String),
	}
	if cancelRequested.Valid {
		ep.CancelRequested = cancelRequested.Int64 != 0
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		ep.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		ep.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			ep.GenerationStartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			ep.CompletedAt = &completed
		}
	}
	return ep, nil
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func encodeTags(tags []string) any {
	if len(tags) == 0 {
		return nil
	}
	payload, err := json.Marshal(tags)
	if err != nil {
		return nil
	}
	return string(payload)
}

func decodeTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	return tags
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
