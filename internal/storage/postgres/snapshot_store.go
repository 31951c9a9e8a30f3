package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/sailingchannels/crawler/internal/quota"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// SnapshotStore keeps one counter value per channel and calendar day. The
// (channel_id, day) key makes replays idempotent: re-scraping on the same
// day overwrites the day's row instead of appending.
type SnapshotStore struct {
	pool  querier
	table string
}

// NewViewSnapshotStore builds the store for daily view counts.
func NewViewSnapshotStore(pool querier) *SnapshotStore {
	s, _ := newSnapshotStore(pool, "channel_views")
	return s
}

// NewSubscriberSnapshotStore builds the store for daily subscriber counts.
func NewSubscriberSnapshotStore(pool querier) *SnapshotStore {
	s, _ := newSnapshotStore(pool, "channel_subscribers")
	return s
}

func newSnapshotStore(pool querier, table string) (*SnapshotStore, error) {
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SnapshotStore{pool: pool, table: table}, nil
}

// Upsert writes the count for the channel's current calendar day.
func (s *SnapshotStore) Upsert(ctx context.Context, channelID string, at time.Time, count int64) error {
	query := fmt.Sprintf(`
INSERT INTO %s (channel_id, day, recorded_at, count)
VALUES ($1, $2, $3, $4)
ON CONFLICT (channel_id, day) DO UPDATE SET
	recorded_at = EXCLUDED.recorded_at,
	count = EXCLUDED.count`, s.table)

	if _, err := s.pool.Exec(ctx, query, channelID, quota.Day(at), at, count); err != nil {
		return fmt.Errorf("upsert %s snapshot for %s: %w", s.table, channelID, err)
	}
	return nil
}

// DeleteByChannel removes every snapshot row of a channel.
func (s *SnapshotStore) DeleteByChannel(ctx context.Context, channelID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE channel_id = $1`, s.table)
	if _, err := s.pool.Exec(ctx, query, channelID); err != nil {
		return fmt.Errorf("delete %s snapshots for %s: %w", s.table, channelID, err)
	}
	return nil
}
