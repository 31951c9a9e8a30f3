package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const lastDiscoveryRunKey = "last_discovery_run"

// SettingsStore keeps pipeline watermarks as epoch-second values.
type SettingsStore struct {
	pool querier
}

// NewSettingsStore builds a SettingsStore on the shared pool.
func NewSettingsStore(pool querier) *SettingsStore {
	return &SettingsStore{pool: pool}
}

// GetLastDiscoveryRun returns the zero time when no sweep has completed.
func (s *SettingsStore) GetLastDiscoveryRun(ctx context.Context) (time.Time, error) {
	var epoch int64
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM settings WHERE key = $1`, lastDiscoveryRunKey,
	).Scan(&epoch)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("query last discovery run: %w", err)
	}
	return time.Unix(epoch, 0).UTC(), nil
}

// SetLastDiscoveryRun stores the completion time of a discovery sweep.
func (s *SettingsStore) SetLastDiscoveryRun(ctx context.Context, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO settings (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		lastDiscoveryRunKey, at.Unix(),
	)
	if err != nil {
		return fmt.Errorf("set last discovery run: %w", err)
	}
	return nil
}
