package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/sailingchannels/crawler/internal/domain"
)

// VideoStore persists video records.
type VideoStore struct {
	pool querier
}

// NewVideoStore builds a VideoStore on the shared pool.
func NewVideoStore(pool querier) *VideoStore {
	return &VideoStore{pool: pool}
}

// UpdatedAtByChannel returns video id to last stored update time for all of
// a channel's videos.
func (s *VideoStore) UpdatedAtByChannel(ctx context.Context, channelID string) (map[string]time.Time, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, updated_at FROM videos WHERE channel_id = $1`, channelID,
	)
	if err != nil {
		return nil, fmt.Errorf("query video update times: %w", err)
	}
	defer rows.Close()

	known := make(map[string]time.Time)
	for rows.Next() {
		var (
			id        string
			updatedAt time.Time
		)
		if err := rows.Scan(&id, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan video row: %w", err)
		}
		known[id] = updatedAt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate video rows: %w", err)
	}
	return known, nil
}

// CountByChannel returns the number of stored videos for a channel.
func (s *VideoStore) CountByChannel(ctx context.Context, channelID string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM videos WHERE channel_id = $1`, channelID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count videos: %w", err)
	}
	return count, nil
}

// Upsert writes one video record.
func (s *VideoStore) Upsert(ctx context.Context, v domain.Video) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO videos (
	id, channel_id, title, description, published_at, updated_at,
	views, likes, comments, tags, language
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''))
ON CONFLICT (id) DO UPDATE SET
	channel_id = EXCLUDED.channel_id,
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	published_at = EXCLUDED.published_at,
	updated_at = EXCLUDED.updated_at,
	views = EXCLUDED.views,
	likes = EXCLUDED.likes,
	comments = EXCLUDED.comments,
	tags = EXCLUDED.tags,
	language = EXCLUDED.language`,
		v.ID, v.ChannelID, v.Title, v.Description, v.PublishedAt, v.UpdatedAt,
		v.Views, v.Likes, v.Comments, v.Tags, v.Language,
	)
	if err != nil {
		return fmt.Errorf("upsert video %s: %w", v.ID, err)
	}
	return nil
}

// Delete removes one video record.
func (s *VideoStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete video %s: %w", id, err)
	}
	return nil
}

// DeleteByChannel removes every video owned by a channel.
func (s *VideoStore) DeleteByChannel(ctx context.Context, channelID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM videos WHERE channel_id = $1`, channelID); err != nil {
		return fmt.Errorf("delete videos of channel %s: %w", channelID, err)
	}
	return nil
}
