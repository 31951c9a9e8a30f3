// Package domain defines the records, commands and collaborator contracts
// shared across the crawl pipeline.
package domain

import "time"

// ScrapeError is a durable annotation recording the most recent failed
// scrape attempt for a channel.
type ScrapeError struct {
	At      time.Time
	Message string
}

// Channel is the curated metadata record for a single channel.
type Channel struct {
	ID                string
	Title             string
	Description       string
	PublishedAt       time.Time
	Thumbnail         string
	Subscribers       int64
	Views             int64
	SubscribersHidden bool
	Country           string
	Keywords          []string
	Language          string
	DetectedLanguage  bool
	LastCrawl         time.Time
	LastVideoCrawl    time.Time
	VideoCount        int64
	LastUploadAt      time.Time
	ScrapeError       *ScrapeError
}

// Video is the stored metadata record for a single video.
type Video struct {
	ID          string
	ChannelID   string
	Title       string
	Description string
	PublishedAt time.Time
	UpdatedAt   time.Time
	Views       int64
	Likes       int64
	Comments    int64
	Tags        []string
	Language    string
}

// APIKey tracks daily quota consumption for one upstream credential.
// LastResetDay is an integer YYYYMMDD in the platform's quota timezone.
type APIKey struct {
	Key          string
	UsedQuota    int64
	DailyQuota   int64
	LastResetDay int
}

// AdditionalChannel is an operator-curated allow-list entry. When
// IgnoreRelevanceFilter is set, the channel bypasses term classification.
type AdditionalChannel struct {
	ID                    string
	IgnoreRelevanceFilter bool
}

// CrawlChannelCommand asks the channel worker to scrape one channel.
// Commands are transient: they exist only on the in-memory queue and are
// rediscovered from persistent state after a restart.
type CrawlChannelCommand struct {
	ChannelID             string
	IgnoreRelevanceFilter bool
}

// CrawlVideosCommand asks the video worker to refresh one channel's videos.
type CrawlVideosCommand struct {
	ChannelID string
}
