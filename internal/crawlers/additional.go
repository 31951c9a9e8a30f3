package crawlers

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sailingchannels/crawler/internal/domain"
)

// AdditionalCrawler feeds operator-submitted channels into the pipeline.
// Entries whose channel already exists have been scraped on an earlier
// sweep and are removed from the allow list.
type AdditionalCrawler struct {
	additional domain.AdditionalChannelRepository
	channels   domain.ChannelRepository
	sender     channelSender
	interval   time.Duration
	logger     *zap.Logger
}

// NewAdditionalCrawler builds an AdditionalCrawler.
func NewAdditionalCrawler(
	additional domain.AdditionalChannelRepository,
	channels domain.ChannelRepository,
	sender channelSender,
	interval time.Duration,
	logger *zap.Logger,
) *AdditionalCrawler {
	return &AdditionalCrawler{
		additional: additional,
		channels:   channels,
		sender:     sender,
		interval:   interval,
		logger:     logger,
	}
}

// Run drives the loop until the context ends or a queue closes.
func (c *AdditionalCrawler) Run(ctx context.Context) error {
	return runLoop(ctx, c.logger, "additional", c.interval, c.sweep)
}

func (c *AdditionalCrawler) sweep(ctx context.Context) error {
	entries, err := c.additional.GetAll(ctx)
	if err != nil {
		c.logger.Error("load additional channels failed", zap.Error(err))
		return nil
	}

	for _, entry := range entries {
		exists, err := c.channels.Exists(ctx, entry.ID)
		if err != nil {
			c.logger.Error("check channel failed",
				zap.String("channel_id", entry.ID),
				zap.Error(err),
			)
			continue
		}
		if exists {
			if err := c.additional.Delete(ctx, entry.ID); err != nil {
				c.logger.Error("delete additional entry failed",
					zap.String("channel_id", entry.ID),
					zap.Error(err),
				)
			}
			continue
		}

		cmd := domain.CrawlChannelCommand{
			ChannelID:             entry.ID,
			IgnoreRelevanceFilter: entry.IgnoreRelevanceFilter,
		}
		if err := c.sender.Enqueue(ctx, cmd); err != nil {
			if errors.Is(err, domain.ErrQueueClosed) {
				return err
			}
			c.logger.Error("enqueue additional channel failed",
				zap.String("channel_id", entry.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}
