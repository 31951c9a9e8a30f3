package crawlers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sailingchannels/crawler/internal/clock"
	"github.com/sailingchannels/crawler/internal/domain"
	"github.com/sailingchannels/crawler/internal/metrics"
)

// uploadWindow bounds the discovery source set to recently active channels.
const uploadWindow = 90 * 24 * time.Hour

// DiscoveryCrawler finds new channels by walking the subscription lists of
// recently active known channels. Sweeps are expensive in API quota, so a
// durable watermark gates them to at most one per interval across restarts.
type DiscoveryCrawler struct {
	channels   domain.ChannelRepository
	additional domain.AdditionalChannelRepository
	settings   domain.SettingsRepository
	subs       subscriptionLister
	classify   classifier
	sender     channelSender
	interval   time.Duration
	clk        clock.Clock
	logger     *zap.Logger
}

// NewDiscoveryCrawler builds a DiscoveryCrawler.
func NewDiscoveryCrawler(
	channels domain.ChannelRepository,
	additional domain.AdditionalChannelRepository,
	settings domain.SettingsRepository,
	subs subscriptionLister,
	classify classifier,
	sender channelSender,
	interval time.Duration,
	clk clock.Clock,
	logger *zap.Logger,
) *DiscoveryCrawler {
	return &DiscoveryCrawler{
		channels:   channels,
		additional: additional,
		settings:   settings,
		subs:       subs,
		classify:   classify,
		sender:     sender,
		interval:   interval,
		clk:        clk,
		logger:     logger,
	}
}

// Run drives the loop until the context ends or a queue closes. The loop
// wakes up well below the sweep interval so a due sweep is not delayed by a
// full period after a restart.
func (c *DiscoveryCrawler) Run(ctx context.Context) error {
	wakeup := c.interval / 24
	if wakeup < time.Minute {
		wakeup = time.Minute
	}
	return runLoop(ctx, c.logger, "discovery", wakeup, c.sweep)
}

func (c *DiscoveryCrawler) sweep(ctx context.Context) error {
	now := c.clk.Now()

	lastRun, err := c.settings.GetLastDiscoveryRun(ctx)
	if err != nil {
		c.logger.Error("load discovery watermark failed", zap.Error(err))
		return nil
	}
	if now.Sub(lastRun) < c.interval {
		return nil
	}

	sweepID := uuid.NewString()
	logger := c.logger.With(zap.String("sweep_id", sweepID))

	sources, err := c.channels.GetIDsUploadedSince(ctx, now.Add(-uploadWindow))
	if err != nil {
		logger.Error("load discovery sources failed", zap.Error(err))
		return nil
	}

	logger.Info("discovery sweep started", zap.Int("sources", len(sources)))

	discovered := 0
	for _, sourceID := range sources {
		targets, err := c.subs.GetChannelSubscriptions(ctx, sourceID)
		if err != nil {
			if errors.Is(err, domain.ErrQuotaExceeded) {
				// Abort without advancing the watermark; the next
				// wakeup retries once quota recovers.
				logger.Warn("discovery sweep aborted, quota exceeded",
					zap.String("source_id", sourceID),
				)
				return nil
			}
			logger.Error("list subscriptions failed",
				zap.String("source_id", sourceID),
				zap.Error(err),
			)
			continue
		}

		for _, target := range targets {
			enqueued, err := c.consider(ctx, target.ChannelID, target.Title, target.Description)
			if err != nil {
				if errors.Is(err, domain.ErrQueueClosed) {
					return err
				}
				logger.Error("consider discovered channel failed",
					zap.String("channel_id", target.ChannelID),
					zap.Error(err),
				)
				continue
			}
			if enqueued {
				discovered++
			}
		}
	}

	if err := c.settings.SetLastDiscoveryRun(ctx, now); err != nil {
		logger.Error("store discovery watermark failed", zap.Error(err))
		return nil
	}

	logger.Info("discovery sweep finished", zap.Int("discovered", discovered))
	return nil
}

// consider decides whether one subscription target enters the pipeline.
// Known channels, allow-list entries and previously rejected channels are
// skipped before classification so no work is repeated.
func (c *DiscoveryCrawler) consider(ctx context.Context, channelID, title, description string) (bool, error) {
	known, err := c.channels.Exists(ctx, channelID)
	if err != nil {
		return false, err
	}
	if known {
		return false, nil
	}

	listed, err := c.additional.Exists(ctx, channelID)
	if err != nil {
		return false, err
	}
	if listed {
		return false, nil
	}

	if c.classify.IsKnownNonRelevant(ctx, channelID) {
		return false, nil
	}

	result := c.classify.Classify(ctx, channelID, title, description, false)
	if !result.IsRelevant {
		return false, nil
	}

	if err := c.sender.Enqueue(ctx, domain.CrawlChannelCommand{ChannelID: channelID}); err != nil {
		return false, err
	}
	metrics.ObserveDiscoveredChannel()
	return true, nil
}
