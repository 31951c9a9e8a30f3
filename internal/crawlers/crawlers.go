// Package crawlers contains the periodic producer loops that decide which
// channels and videos need work and enqueue commands for the scraper
// workers.
package crawlers

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sailingchannels/crawler/internal/domain"
	"github.com/sailingchannels/crawler/internal/relevance"
	"github.com/sailingchannels/crawler/internal/youtube"
)

// channelSender enqueues channel scrape commands.
type channelSender interface {
	Enqueue(ctx context.Context, cmd domain.CrawlChannelCommand) error
}

// videoSender enqueues video scrape commands.
type videoSender interface {
	Enqueue(ctx context.Context, cmd domain.CrawlVideosCommand) error
}

// subscriptionLister fetches the channels a channel subscribes to.
type subscriptionLister interface {
	GetChannelSubscriptions(ctx context.Context, channelID string) ([]youtube.SubscriptionTarget, error)
}

// classifier decides relevance for discovered channels.
type classifier interface {
	Classify(ctx context.Context, channelID, title, description string, ignoreFilter bool) relevance.Result
	IsKnownNonRelevant(ctx context.Context, channelID string) bool
}

// runLoop drives one producer: sweep immediately, then on every tick until
// the context ends. A sweep error is fatal and stops the loop; sweeps handle
// per-candidate failures themselves.
func runLoop(ctx context.Context, logger *zap.Logger, name string, interval time.Duration, sweep func(context.Context) error) error {
	logger.Info("crawler loop started",
		zap.String("crawler", name),
		zap.Duration("interval", interval),
	)

	for {
		if err := sweep(ctx); err != nil {
			if errors.Is(err, domain.ErrQueueClosed) {
				logger.Info("crawler loop stopping, queue closed", zap.String("crawler", name))
				return err
			}
			return err
		}

		select {
		case <-ctx.Done():
			logger.Info("crawler loop stopping", zap.String("crawler", name))
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
