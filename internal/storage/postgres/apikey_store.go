package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sailingchannels/crawler/internal/domain"
)

// APIKeyStore manages the upstream credential pool.
type APIKeyStore struct {
	pool querier
}

// NewAPIKeyStore builds an APIKeyStore on the shared pool.
func NewAPIKeyStore(pool querier) *APIKeyStore {
	return &APIKeyStore{pool: pool}
}

// GetLeastUsed returns the key with the numerically smallest used quota,
// ties broken arbitrarily.
func (s *APIKeyStore) GetLeastUsed(ctx context.Context) (domain.APIKey, error) {
	var key domain.APIKey
	err := s.pool.QueryRow(ctx, `
SELECT key, used_quota, daily_quota, last_reset_day
FROM api_keys
ORDER BY used_quota ASC
LIMIT 1`).Scan(&key.Key, &key.UsedQuota, &key.DailyQuota, &key.LastResetDay)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.APIKey{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.APIKey{}, fmt.Errorf("query least used key: %w", err)
	}
	return key, nil
}

// RecordUsage charges one usage event in a single atomic statement so two
// concurrent workers can neither double-apply a reset nor lose an
// increment: the first usage on a day strictly after the stored reset day
// resets the counter to 1 and advances the day, any other usage increments
// by 1.
func (s *APIKeyStore) RecordUsage(ctx context.Context, key string, day int) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE api_keys SET
	used_quota = CASE WHEN $2 > last_reset_day THEN 1 ELSE used_quota + 1 END,
	last_reset_day = CASE WHEN $2 > last_reset_day THEN $2 ELSE last_reset_day END
WHERE key = $1`,
		key, day,
	)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record usage: key: %w", domain.ErrNotFound)
	}
	return nil
}
