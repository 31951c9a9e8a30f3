package postgres

import (
	"context"
	"fmt"

	"github.com/sailingchannels/crawler/internal/domain"
)

// TermStore provides the curated relevance term list.
type TermStore struct {
	pool querier
}

// NewTermStore builds a TermStore on the shared pool.
func NewTermStore(pool querier) *TermStore {
	return &TermStore{pool: pool}
}

// GetAll returns every term, lowercased for matching.
func (s *TermStore) GetAll(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT lower(term) FROM sailing_terms`)
	if err != nil {
		return nil, fmt.Errorf("query terms: %w", err)
	}
	return collectIDs(rows)
}

// BlacklistStore provides the operator-curated deny list.
type BlacklistStore struct {
	pool querier
}

// NewBlacklistStore builds a BlacklistStore on the shared pool.
func NewBlacklistStore(pool querier) *BlacklistStore {
	return &BlacklistStore{pool: pool}
}

// GetAll returns every blacklisted channel id.
func (s *BlacklistStore) GetAll(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT channel_id FROM blacklist`)
	if err != nil {
		return nil, fmt.Errorf("query blacklist: %w", err)
	}
	return collectIDs(rows)
}

// AdditionalChannelStore provides the operator-curated allow list.
type AdditionalChannelStore struct {
	pool querier
}

// NewAdditionalChannelStore builds an AdditionalChannelStore on the shared
// pool.
func NewAdditionalChannelStore(pool querier) *AdditionalChannelStore {
	return &AdditionalChannelStore{pool: pool}
}

// GetAll returns every allow-list entry.
func (s *AdditionalChannelStore) GetAll(ctx context.Context) ([]domain.AdditionalChannel, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT channel_id, ignore_relevance_filter FROM additional_channels`,
	)
	if err != nil {
		return nil, fmt.Errorf("query additional channels: %w", err)
	}
	defer rows.Close()

	var entries []domain.AdditionalChannel
	for rows.Next() {
		var entry domain.AdditionalChannel
		if err := rows.Scan(&entry.ID, &entry.IgnoreRelevanceFilter); err != nil {
			return nil, fmt.Errorf("scan additional channel: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate additional channels: %w", err)
	}
	return entries, nil
}

// Exists reports whether the channel is on the allow list.
func (s *AdditionalChannelStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM additional_channels WHERE channel_id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check additional channel: %w", err)
	}
	return exists, nil
}

// Delete removes an allow-list entry once the channel has been scraped.
func (s *AdditionalChannelStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM additional_channels WHERE channel_id = $1`, id); err != nil {
		return fmt.Errorf("delete additional channel %s: %w", id, err)
	}
	return nil
}
