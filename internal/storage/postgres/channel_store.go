package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sailingchannels/crawler/internal/domain"
)

// ChannelStore persists channel records.
type ChannelStore struct {
	pool querier
}

// NewChannelStore builds a ChannelStore on the shared pool.
func NewChannelStore(pool querier) *ChannelStore {
	return &ChannelStore{pool: pool}
}

// GetAllIDs returns the ids of every known channel.
func (s *ChannelStore) GetAllIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM channels`)
	if err != nil {
		return nil, fmt.Errorf("query channel ids: %w", err)
	}
	return collectIDs(rows)
}

// GetIDsLastCrawledBefore returns channels due for a metadata refresh.
func (s *ChannelStore) GetIDsLastCrawledBefore(ctx context.Context, crawledBefore, uploadedAfter time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM channels WHERE last_crawl < $1 AND last_upload_at >= $2`,
		crawledBefore, uploadedAfter,
	)
	if err != nil {
		return nil, fmt.Errorf("query stale channel ids: %w", err)
	}
	return collectIDs(rows)
}

// GetIDsUploadedSince returns channels with a recent upload.
func (s *ChannelStore) GetIDsUploadedSince(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM channels WHERE last_upload_at >= $1`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("query active channel ids: %w", err)
	}
	return collectIDs(rows)
}

// Exists reports whether the channel is known.
func (s *ChannelStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM channels WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check channel exists: %w", err)
	}
	return exists, nil
}

// GetLastCrawl returns nil for unknown channels.
func (s *ChannelStore) GetLastCrawl(ctx context.Context, id string) (*time.Time, error) {
	var lastCrawl *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT last_crawl FROM channels WHERE id = $1`, id,
	).Scan(&lastCrawl)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last crawl: %w", err)
	}
	return lastCrawl, nil
}

// HasDetectedLanguage reports whether a language was already detected for
// the channel. Unknown channels report false.
func (s *ChannelStore) HasDetectedLanguage(ctx context.Context, id string) (bool, error) {
	var detected bool
	err := s.pool.QueryRow(ctx,
		`SELECT detected_language FROM channels WHERE id = $1`, id,
	).Scan(&detected)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query detected language: %w", err)
	}
	return detected, nil
}

// Upsert writes the scrape outcome. A previously detected language is never
// overwritten, and video stats maintained by the video worker are left
// untouched. A successful scrape clears any scrape-error annotation.
func (s *ChannelStore) Upsert(ctx context.Context, ch domain.Channel) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO channels (
	id, title, description, published_at, thumbnail,
	subscribers, views, subscribers_hidden, country, keywords,
	language, detected_language, last_crawl
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, NULLIF($11, ''), $12, $13)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	published_at = EXCLUDED.published_at,
	thumbnail = EXCLUDED.thumbnail,
	subscribers = EXCLUDED.subscribers,
	views = EXCLUDED.views,
	subscribers_hidden = EXCLUDED.subscribers_hidden,
	country = EXCLUDED.country,
	keywords = EXCLUDED.keywords,
	language = COALESCE(channels.language, EXCLUDED.language),
	detected_language = channels.detected_language OR EXCLUDED.detected_language,
	last_crawl = EXCLUDED.last_crawl,
	scrape_error_at = NULL,
	scrape_error_message = NULL`,
		ch.ID, ch.Title, ch.Description, ch.PublishedAt, ch.Thumbnail,
		ch.Subscribers, ch.Views, ch.SubscribersHidden, ch.Country, ch.Keywords,
		ch.Language, ch.DetectedLanguage, ch.LastCrawl,
	)
	if err != nil {
		return fmt.Errorf("upsert channel %s: %w", ch.ID, err)
	}
	return nil
}

// Delete removes a channel record.
func (s *ChannelStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM channels WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete channel %s: %w", id, err)
	}
	return nil
}

// SetVideoStats updates the cached video count and last-upload timestamp.
func (s *ChannelStore) SetVideoStats(ctx context.Context, id string, videoCount int64, lastUploadAt, crawledAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
UPDATE channels SET video_count = $2, last_upload_at = $3, last_video_crawl = $4
WHERE id = $1`,
		id, videoCount, lastUploadAt, crawledAt,
	)
	if err != nil {
		return fmt.Errorf("set video stats %s: %w", id, err)
	}
	return nil
}

// SetScrapeError records a durable annotation for the most recent failed
// scrape. A no-op for unknown channels.
func (s *ChannelStore) SetScrapeError(ctx context.Context, id, message string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
UPDATE channels SET scrape_error_at = $2, scrape_error_message = $3
WHERE id = $1`,
		id, at, message,
	)
	if err != nil {
		return fmt.Errorf("set scrape error %s: %w", id, err)
	}
	return nil
}

func collectIDs(rows pgx.Rows) ([]string, error) {
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}
