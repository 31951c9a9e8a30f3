package scraper

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sailingchannels/crawler/internal/clock"
	"github.com/sailingchannels/crawler/internal/domain"
	"github.com/sailingchannels/crawler/internal/metrics"
	"github.com/sailingchannels/crawler/internal/staleness"
	"github.com/sailingchannels/crawler/internal/youtube"
)

// videoDequeuer pops video refresh commands.
type videoDequeuer interface {
	Dequeue(ctx context.Context) (domain.CrawlVideosCommand, error)
}

// videoAPI fetches video data upstream.
type videoAPI interface {
	GetVideoFeed(ctx context.Context, channelID string) ([]youtube.VideoFeedEntry, error)
	GetVideoDetails(ctx context.Context, videoID string) (youtube.VideoDetails, error)
}

// VideoScraper consumes video commands, walks a channel's upload feed and
// refreshes stale videos. The feed is free; only the per-video detail calls
// are metered, and the refresh policy decides which are worth spending.
type VideoScraper struct {
	queue    videoDequeuer
	api      videoAPI
	videos   domain.VideoRepository
	channels domain.ChannelRepository
	policy   staleness.Policy
	clk      clock.Clock
	logger   *zap.Logger
}

// NewVideoScraper builds a VideoScraper.
func NewVideoScraper(
	queue videoDequeuer,
	api videoAPI,
	videos domain.VideoRepository,
	channels domain.ChannelRepository,
	policy staleness.Policy,
	clk clock.Clock,
	logger *zap.Logger,
) *VideoScraper {
	return &VideoScraper{
		queue:    queue,
		api:      api,
		videos:   videos,
		channels: channels,
		policy:   policy,
		clk:      clk,
		logger:   logger,
	}
}

// Run consumes commands until the context ends or the queue closes.
func (s *VideoScraper) Run(ctx context.Context) error {
	s.logger.Info("video scraper started")
	for {
		cmd, err := s.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrQueueClosed) {
				s.logger.Info("video scraper stopping, queue closed")
			}
			return err
		}
		s.scrape(ctx, cmd)
	}
}

func (s *VideoScraper) scrape(ctx context.Context, cmd domain.CrawlVideosCommand) {
	now := s.clk.Now()
	logger := s.logger.With(zap.String("channel_id", cmd.ChannelID))

	entries, err := s.api.GetVideoFeed(ctx, cmd.ChannelID)
	if err != nil {
		logger.Error("fetch video feed failed", zap.Error(err))
		metrics.ObserveScrape("videos", "error")
		return
	}
	if len(entries) == 0 {
		metrics.ObserveScrape("videos", "ok")
		return
	}

	known, err := s.videos.UpdatedAtByChannel(ctx, cmd.ChannelID)
	if err != nil {
		logger.Error("load stored videos failed", zap.Error(err))
		metrics.ObserveScrape("videos", "error")
		return
	}

	// The newest publish time is tracked across every feed entry, not only
	// refreshed ones, so the channel's upload watermark stays accurate even
	// when nothing is stale.
	lastUploadAt := entries[0].Published
	for _, entry := range entries {
		if entry.Published.After(lastUploadAt) {
			lastUploadAt = entry.Published
		}
	}

	for _, entry := range entries {
		var lastUpdate *time.Time
		if updatedAt, ok := known[entry.VideoID]; ok {
			lastUpdate = &updatedAt
		}
		if !s.policy.ShouldRefresh(lastUpdate, entry.Published, now) {
			continue
		}

		details, err := s.api.GetVideoDetails(ctx, entry.VideoID)
		if err != nil {
			if errors.Is(err, domain.ErrQuotaExceeded) {
				logger.Warn("video refresh stopped, quota exceeded")
				break
			}
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			logger.Error("fetch video failed",
				zap.String("video_id", entry.VideoID),
				zap.Error(err),
			)
			continue
		}

		if details.Privacy != "public" {
			if err := s.videos.Delete(ctx, entry.VideoID); err != nil {
				logger.Error("delete non-public video failed",
					zap.String("video_id", entry.VideoID),
					zap.Error(err),
				)
			}
			continue
		}

		video := domain.Video{
			ID:          details.ID,
			ChannelID:   cmd.ChannelID,
			Title:       details.Title,
			Description: details.Description,
			PublishedAt: details.PublishedAt,
			UpdatedAt:   now,
			Views:       details.Views,
			Likes:       details.Likes,
			Comments:    details.Comments,
			Tags:        details.Tags,
			Language:    strings.ToLower(details.DefaultLanguage),
		}
		if err := s.videos.Upsert(ctx, video); err != nil {
			logger.Error("store video failed",
				zap.String("video_id", entry.VideoID),
				zap.Error(err),
			)
		}
	}

	count, err := s.videos.CountByChannel(ctx, cmd.ChannelID)
	if err != nil {
		logger.Error("count videos failed", zap.Error(err))
		metrics.ObserveScrape("videos", "error")
		return
	}
	if err := s.channels.SetVideoStats(ctx, cmd.ChannelID, count, lastUploadAt, now); err != nil {
		logger.Error("store video stats failed", zap.Error(err))
		metrics.ObserveScrape("videos", "error")
		return
	}

	metrics.ObserveScrape("videos", "ok")
}
