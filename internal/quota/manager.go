// Package quota selects upstream API credentials and accounts their daily
// usage against the platform's quota reset boundary.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sailingchannels/crawler/internal/clock"
	"github.com/sailingchannels/crawler/internal/domain"
	"github.com/sailingchannels/crawler/internal/metrics"
)

// resetZone is the timezone in which the platform resets daily quotas.
const resetZone = "America/Los_Angeles"

// Manager picks the least-consumed key for each call and records usage
// through the backing store. Quota state is never cached in memory: every
// selection re-reads the store so concurrent workers arbitrate there.
type Manager struct {
	keys domain.APIKeyRepository
	clk  clock.Clock
	loc  *time.Location
}

// NewManager builds a Manager.
func NewManager(keys domain.APIKeyRepository, clk clock.Clock) (*Manager, error) {
	loc, err := time.LoadLocation(resetZone)
	if err != nil {
		return nil, fmt.Errorf("load quota reset zone: %w", err)
	}
	return &Manager{keys: keys, clk: clk, loc: loc}, nil
}

// SelectKey returns the credential with the smallest used quota.
func (m *Manager) SelectKey(ctx context.Context) (domain.APIKey, error) {
	key, err := m.keys.GetLeastUsed(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.APIKey{}, domain.ErrNoAPIKeys
		}
		return domain.APIKey{}, fmt.Errorf("select api key: %w", err)
	}
	return key, nil
}

// RecordUsage charges one call against the key. The store applies the
// reset-and-charge rule atomically: used quota becomes 1 when the current
// day is strictly after the key's stored reset day, otherwise it is
// incremented by 1.
func (m *Manager) RecordUsage(ctx context.Context, key domain.APIKey) error {
	day := Day(m.clk.Now().In(m.loc))
	if err := m.keys.RecordUsage(ctx, key.Key, day); err != nil {
		return fmt.Errorf("record key usage: %w", err)
	}
	if day > key.LastResetDay {
		metrics.ObserveKeyUsage(key.Key, 1)
	} else {
		metrics.ObserveKeyUsage(key.Key, key.UsedQuota+1)
	}
	return nil
}

// Day converts a local time into the integer YYYYMMDD form stored per key.
func Day(t time.Time) int {
	y, mo, d := t.Date()
	return y*10000 + int(mo)*100 + d
}
