package episode

import (
	"context"
	"database/sql"
	"fmt"
)

// RecentEpisodes returns the most recently touched episodes first, capped at
// limit. Ordering follows updated_at so active work surfaces ahead of old
// drafts.
func (s *Store) RecentEpisodes(ctx context.Context, limit int) ([]*Episode, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+episodeColumns+` FROM episodes ORDER BY updated_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent episodes: %w", err)
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

// StatsByStyle returns episode counts grouped by content style and status.
func (s *Store) StatsByStyle(ctx context.Context) (map[ContentStyle]map[Status]int, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT content_style, status, COUNT(1) FROM episodes GROUP BY content_style, status`,
	)
	if err != nil {
		return nil, fmt.Errorf("stats by style: %w", err)
	}
	defer rows.Close()

	stats := make(map[ContentStyle]map[Status]int)
	for rows.Next() {
		var style ContentStyle
		var status Status
		var count int
		if err := rows.Scan(&style, &status, &count); err != nil {
			return nil, err
		}
		if stats[style] == nil {
			stats[style] = make(map[Status]int)
		}
		stats[style][status] = count
	}
	return stats, rows.Err()
}

// AverageGenerationSeconds reports the mean wall-clock duration of completed
// generations, or zero when none have completed.
func (s *Store) AverageGenerationSeconds(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(
		ctx,
		`SELECT AVG((julianday(completed_at) - julianday(generation_started_at)) * 86400.0)
         FROM episodes
         WHERE status = ? AND completed_at IS NOT NULL AND generation_started_at IS NOT NULL`,
		StatusCompleted,
	).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("average generation time: %w", err)
	}
	return avg.Float64, nil
}
