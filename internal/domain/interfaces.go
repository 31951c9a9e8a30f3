package domain

import (
	"context"
	"time"
)

// ChannelRepository persists curated channel records.
type ChannelRepository interface {
	GetAllIDs(ctx context.Context) ([]string, error)
	// GetIDsLastCrawledBefore returns channels whose last crawl is older
	// than crawledBefore and whose last upload is newer than uploadedAfter.
	GetIDsLastCrawledBefore(ctx context.Context, crawledBefore, uploadedAfter time.Time) ([]string, error)
	// GetIDsUploadedSince returns channels with at least one upload after
	// the given instant.
	GetIDsUploadedSince(ctx context.Context, since time.Time) ([]string, error)
	Exists(ctx context.Context, id string) (bool, error)
	// GetLastCrawl returns nil when the channel is unknown or has never
	// been crawled.
	GetLastCrawl(ctx context.Context, id string) (*time.Time, error)
	HasDetectedLanguage(ctx context.Context, id string) (bool, error)
	Upsert(ctx context.Context, ch Channel) error
	Delete(ctx context.Context, id string) error
	SetVideoStats(ctx context.Context, id string, videoCount int64, lastUploadAt, crawledAt time.Time) error
	SetScrapeError(ctx context.Context, id, message string, at time.Time) error
}

// VideoRepository persists video records.
type VideoRepository interface {
	// UpdatedAtByChannel returns a lookup of video id to last stored
	// update time for all of a channel's videos.
	UpdatedAtByChannel(ctx context.Context, channelID string) (map[string]time.Time, error)
	CountByChannel(ctx context.Context, channelID string) (int64, error)
	Upsert(ctx context.Context, v Video) error
	Delete(ctx context.Context, id string) error
	DeleteByChannel(ctx context.Context, channelID string) error
}

// CountSnapshotRepository stores one count per channel and calendar day.
// Upserting the same (channel, day) twice must be idempotent.
type CountSnapshotRepository interface {
	Upsert(ctx context.Context, channelID string, at time.Time, count int64) error
	DeleteByChannel(ctx context.Context, channelID string) error
}

// APIKeyRepository manages the credential pool. RecordUsage must be a single
// atomic read-modify-write: reset used quota to 1 when day is strictly newer
// than the stored reset day, increment by 1 otherwise.
type APIKeyRepository interface {
	GetLeastUsed(ctx context.Context) (APIKey, error)
	RecordUsage(ctx context.Context, key string, day int) error
}

// TermRepository provides the curated relevance term list.
type TermRepository interface {
	GetAll(ctx context.Context) ([]string, error)
}

// BlacklistRepository provides the operator-curated deny list.
type BlacklistRepository interface {
	GetAll(ctx context.Context) ([]string, error)
}

// AdditionalChannelRepository provides the operator-curated allow list.
type AdditionalChannelRepository interface {
	GetAll(ctx context.Context) ([]AdditionalChannel, error)
	Exists(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// SettingsRepository stores pipeline watermarks.
type SettingsRepository interface {
	// GetLastDiscoveryRun returns the zero time when no sweep has
	// completed yet.
	GetLastDiscoveryRun(ctx context.Context) (time.Time, error)
	SetLastDiscoveryRun(ctx context.Context, at time.Time) error
}

// NegativeCache records channels already classified as not relevant so they
// are never reclassified or re-queued.
type NegativeCache interface {
	Add(ctx context.Context, channelID string) error
	Exists(ctx context.Context, channelID string) (bool, error)
}
