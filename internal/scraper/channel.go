// Package scraper contains the queue consumers that fetch upstream metadata
// and persist it.
package scraper

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sailingchannels/crawler/internal/clock"
	"github.com/sailingchannels/crawler/internal/domain"
	"github.com/sailingchannels/crawler/internal/keywords"
	"github.com/sailingchannels/crawler/internal/metrics"
	"github.com/sailingchannels/crawler/internal/relevance"
	"github.com/sailingchannels/crawler/internal/youtube"
)

// channelDequeuer pops channel scrape commands.
type channelDequeuer interface {
	Dequeue(ctx context.Context) (domain.CrawlChannelCommand, error)
}

// channelAPI fetches channel metadata upstream.
type channelAPI interface {
	GetChannelDetails(ctx context.Context, channelID string) (youtube.ChannelDetails, error)
}

// classifier decides relevance for scraped channels.
type classifier interface {
	Classify(ctx context.Context, channelID, title, description string, ignoreFilter bool) relevance.Result
}

// languageDetector detects the language of channel text.
type languageDetector interface {
	Detect(ctx context.Context, text string) (string, error)
}

// ChannelScraper consumes channel commands, fetches metadata, classifies
// the channel and persists the outcome together with the daily count
// snapshots.
type ChannelScraper struct {
	queue       channelDequeuer
	api         channelAPI
	classify    classifier
	detector    languageDetector
	channels    domain.ChannelRepository
	videos      domain.VideoRepository
	views       domain.CountSnapshotRepository
	subscribers domain.CountSnapshotRepository
	minRecrawl  time.Duration
	clk         clock.Clock
	logger      *zap.Logger
}

// NewChannelScraper builds a ChannelScraper.
func NewChannelScraper(
	queue channelDequeuer,
	api channelAPI,
	classify classifier,
	detector languageDetector,
	channels domain.ChannelRepository,
	videos domain.VideoRepository,
	views domain.CountSnapshotRepository,
	subscribers domain.CountSnapshotRepository,
	minRecrawl time.Duration,
	clk clock.Clock,
	logger *zap.Logger,
) *ChannelScraper {
	return &ChannelScraper{
		queue:       queue,
		api:         api,
		classify:    classify,
		detector:    detector,
		channels:    channels,
		videos:      videos,
		views:       views,
		subscribers: subscribers,
		minRecrawl:  minRecrawl,
		clk:         clk,
		logger:      logger,
	}
}

// Run consumes commands until the context ends or the queue closes. A
// failed scrape never stops the worker; the error is recorded on the
// channel and the next command is processed.
func (s *ChannelScraper) Run(ctx context.Context) error {
	s.logger.Info("channel scraper started")
	for {
		cmd, err := s.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrQueueClosed) {
				s.logger.Info("channel scraper stopping, queue closed")
			}
			return err
		}
		s.scrape(ctx, cmd)
	}
}

func (s *ChannelScraper) scrape(ctx context.Context, cmd domain.CrawlChannelCommand) {
	now := s.clk.Now()
	logger := s.logger.With(zap.String("channel_id", cmd.ChannelID))

	lastCrawl, err := s.channels.GetLastCrawl(ctx, cmd.ChannelID)
	if err != nil {
		logger.Warn("load last crawl failed", zap.Error(err))
	}
	if lastCrawl != nil && now.Sub(*lastCrawl) < s.minRecrawl {
		metrics.ObserveScrape("channel", "skipped")
		return
	}

	details, err := s.api.GetChannelDetails(ctx, cmd.ChannelID)
	if err != nil {
		logger.Error("fetch channel failed", zap.Error(err))
		if err := s.channels.SetScrapeError(ctx, cmd.ChannelID, err.Error(), now); err != nil {
			logger.Error("record scrape error failed", zap.Error(err))
		}
		metrics.ObserveScrape("channel", "error")
		return
	}

	result := s.classify.Classify(ctx, cmd.ChannelID, details.Title, details.Description, cmd.IgnoreRelevanceFilter)
	if result.IsBlacklisted {
		s.purge(ctx, cmd.ChannelID, logger)
		metrics.ObserveScrape("channel", "blacklisted")
		return
	}

	views := parseCount(details.ViewCount)
	if !result.IsRelevant || views == 0 {
		metrics.ObserveScrape("channel", "rejected")
		return
	}

	ch := domain.Channel{
		ID:                details.ID,
		Title:             details.Title,
		Description:       details.Description,
		PublishedAt:       details.PublishedAt,
		Thumbnail:         details.Thumbnail,
		Subscribers:       parseCount(details.SubscriberCount),
		Views:             views,
		SubscribersHidden: details.HiddenSubscriberCount,
		Country:           strings.ToLower(details.Country),
		Keywords:          keywords.Parse(details.Keywords),
		LastCrawl:         now,
	}

	detected, err := s.channels.HasDetectedLanguage(ctx, cmd.ChannelID)
	if err != nil {
		logger.Warn("load language state failed", zap.Error(err))
	}
	if !detected {
		lang, err := s.detector.Detect(ctx, details.Description)
		if err != nil {
			logger.Warn("language detection failed", zap.Error(err))
		} else if lang != "" {
			ch.Language = lang
			ch.DetectedLanguage = true
		}
	}

	if err := s.views.Upsert(ctx, ch.ID, now, ch.Views); err != nil {
		logger.Error("store view snapshot failed", zap.Error(err))
	}
	// Hidden subscriber counts still get a snapshot row; the count parses
	// to zero when upstream withholds it.
	if err := s.subscribers.Upsert(ctx, ch.ID, now, ch.Subscribers); err != nil {
		logger.Error("store subscriber snapshot failed", zap.Error(err))
	}

	if err := s.channels.Upsert(ctx, ch); err != nil {
		logger.Error("store channel failed", zap.Error(err))
		metrics.ObserveScrape("channel", "error")
		return
	}

	metrics.ObserveScrape("channel", "ok")
}

// purge removes a blacklisted channel and everything derived from it.
func (s *ChannelScraper) purge(ctx context.Context, channelID string, logger *zap.Logger) {
	logger.Info("purging blacklisted channel")

	if err := s.videos.DeleteByChannel(ctx, channelID); err != nil {
		logger.Error("delete videos failed", zap.Error(err))
	}
	if err := s.views.DeleteByChannel(ctx, channelID); err != nil {
		logger.Error("delete view snapshots failed", zap.Error(err))
	}
	if err := s.subscribers.DeleteByChannel(ctx, channelID); err != nil {
		logger.Error("delete subscriber snapshots failed", zap.Error(err))
	}
	if err := s.channels.Delete(ctx, channelID); err != nil {
		logger.Error("delete channel failed", zap.Error(err))
	}
}

// parseCount converts a numeric string defensively, treating absent or
// malformed values as zero.
func parseCount(raw string) int64 {
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
