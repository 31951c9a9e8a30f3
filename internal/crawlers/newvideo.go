package crawlers

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sailingchannels/crawler/internal/domain"
)

// NewVideoCrawler enqueues a video refresh for every known channel. The
// video feed is free to fetch, so the sweep does not pre-filter; the video
// worker decides per video whether metered detail calls are worth it.
type NewVideoCrawler struct {
	channels domain.ChannelRepository
	sender   videoSender
	interval time.Duration
	logger   *zap.Logger
}

// NewNewVideoCrawler builds a NewVideoCrawler.
func NewNewVideoCrawler(
	channels domain.ChannelRepository,
	sender videoSender,
	interval time.Duration,
	logger *zap.Logger,
) *NewVideoCrawler {
	return &NewVideoCrawler{
		channels: channels,
		sender:   sender,
		interval: interval,
		logger:   logger,
	}
}

// Run drives the loop until the context ends or a queue closes.
func (c *NewVideoCrawler) Run(ctx context.Context) error {
	return runLoop(ctx, c.logger, "newvideo", c.interval, c.sweep)
}

func (c *NewVideoCrawler) sweep(ctx context.Context) error {
	ids, err := c.channels.GetAllIDs(ctx)
	if err != nil {
		c.logger.Error("load channel ids failed", zap.Error(err))
		return nil
	}

	for _, id := range ids {
		if err := c.sender.Enqueue(ctx, domain.CrawlVideosCommand{ChannelID: id}); err != nil {
			if errors.Is(err, domain.ErrQueueClosed) {
				return err
			}
			c.logger.Error("enqueue video refresh failed",
				zap.String("channel_id", id),
				zap.Error(err),
			)
		}
	}
	return nil
}
