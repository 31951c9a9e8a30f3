package crawlers

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sailingchannels/crawler/internal/clock"
	"github.com/sailingchannels/crawler/internal/domain"
)

// UpdateCrawler re-queues known channels whose metadata has gone stale.
// Channels with no upload within maxUploadAge are left alone; they re-enter
// the pipeline through discovery if they become active again.
type UpdateCrawler struct {
	channels     domain.ChannelRepository
	sender       channelSender
	interval     time.Duration
	minRecrawl   time.Duration
	maxUploadAge time.Duration
	clk          clock.Clock
	logger       *zap.Logger
}

// NewUpdateCrawler builds an UpdateCrawler.
func NewUpdateCrawler(
	channels domain.ChannelRepository,
	sender channelSender,
	interval, minRecrawl, maxUploadAge time.Duration,
	clk clock.Clock,
	logger *zap.Logger,
) *UpdateCrawler {
	return &UpdateCrawler{
		channels:     channels,
		sender:       sender,
		interval:     interval,
		minRecrawl:   minRecrawl,
		maxUploadAge: maxUploadAge,
		clk:          clk,
		logger:       logger,
	}
}

// Run drives the loop until the context ends or a queue closes.
func (c *UpdateCrawler) Run(ctx context.Context) error {
	return runLoop(ctx, c.logger, "update", c.interval, c.sweep)
}

func (c *UpdateCrawler) sweep(ctx context.Context) error {
	now := c.clk.Now()
	ids, err := c.channels.GetIDsLastCrawledBefore(ctx,
		now.Add(-c.minRecrawl),
		now.Add(-c.maxUploadAge),
	)
	if err != nil {
		c.logger.Error("load stale channels failed", zap.Error(err))
		return nil
	}

	c.logger.Debug("update sweep", zap.Int("candidates", len(ids)))

	for _, id := range ids {
		if err := c.sender.Enqueue(ctx, domain.CrawlChannelCommand{ChannelID: id}); err != nil {
			if errors.Is(err, domain.ErrQueueClosed) {
				return err
			}
			c.logger.Error("enqueue stale channel failed",
				zap.String("channel_id", id),
				zap.Error(err),
			)
		}
	}
	return nil
}
