// Package app initializes and holds the long-lived services of the crawler,
// acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sailingchannels/crawler/internal/api"
	"github.com/sailingchannels/crawler/internal/clock/system"
	"github.com/sailingchannels/crawler/internal/config"
	"github.com/sailingchannels/crawler/internal/crawlers"
	"github.com/sailingchannels/crawler/internal/domain"
	"github.com/sailingchannels/crawler/internal/language"
	"github.com/sailingchannels/crawler/internal/metrics"
	"github.com/sailingchannels/crawler/internal/quota"
	"github.com/sailingchannels/crawler/internal/queue/memory"
	"github.com/sailingchannels/crawler/internal/relevance"
	"github.com/sailingchannels/crawler/internal/scraper"
	"github.com/sailingchannels/crawler/internal/staleness"
	"github.com/sailingchannels/crawler/internal/storage/postgres"
	"github.com/sailingchannels/crawler/internal/storage/rediscache"
	"github.com/sailingchannels/crawler/internal/youtube"

	"github.com/jackc/pgx/v5/pgxpool"
)

// runner is a long-running pipeline component.
type runner interface {
	Run(ctx context.Context) error
}

// App holds every wired service of the crawler process.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	pool     *pgxpool.Pool
	negative *rediscache.NegativeCache

	channelQueue *memory.Queue[domain.CrawlChannelCommand]
	videoQueue   *memory.Queue[domain.CrawlVideosCommand]

	producers []runner
	consumers []runner

	httpServer *http.Server
}

// New builds and connects every service. It fails fast: a missing backing
// store at startup is a deployment problem, not something to retry around.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.Init()

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(cfg.DB.MaxConnLifetime) * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	negative, err := rediscache.New(ctx, rediscache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	channelStore := postgres.NewChannelStore(pool)
	videoStore := postgres.NewVideoStore(pool)
	viewSnapshots := postgres.NewViewSnapshotStore(pool)
	subscriberSnapshots := postgres.NewSubscriberSnapshotStore(pool)
	apiKeyStore := postgres.NewAPIKeyStore(pool)
	termStore := postgres.NewTermStore(pool)
	blacklistStore := postgres.NewBlacklistStore(pool)
	additionalStore := postgres.NewAdditionalChannelStore(pool)
	settingsStore := postgres.NewSettingsStore(pool)

	clk := system.New()

	keyManager, err := quota.NewManager(apiKeyStore, clk)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init quota manager: %w", err)
	}

	classifier, err := relevance.NewClassifier(ctx, termStore, blacklistStore, negative, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init classifier: %w", err)
	}

	detector := language.NewDetector(language.Config{
		BaseURL:     cfg.DetectLanguage.BaseURL,
		APIKeys:     cfg.DetectLanguage.APIKeys,
		Timeout:     time.Duration(cfg.DetectLanguage.TimeoutSeconds) * time.Second,
		MaxAttempts: cfg.DetectLanguage.MaxAttempts,
	}, logger)

	yt := youtube.NewClient(youtube.Config{
		APIBaseURL:  cfg.YouTube.APIBaseURL,
		FeedBaseURL: cfg.YouTube.FeedBaseURL,
		Timeout:     time.Duration(cfg.YouTube.TimeoutSeconds) * time.Second,
	}, keyManager, logger)

	channelQueue := memory.NewQueue[domain.CrawlChannelCommand]("channels", cfg.Crawler.QueueDepth)
	videoQueue := memory.NewQueue[domain.CrawlVideosCommand]("videos", cfg.Crawler.QueueDepth)

	a := &App{
		cfg:          cfg,
		logger:       logger,
		pool:         pool,
		negative:     negative,
		channelQueue: channelQueue,
		videoQueue:   videoQueue,
	}

	if cfg.Crawler.AdditionalEnabled {
		a.producers = append(a.producers, crawlers.NewAdditionalCrawler(
			additionalStore, channelStore, channelQueue,
			cfg.Crawler.AdditionalInterval(), logger.Named("crawler.additional"),
		))
	}
	if cfg.Crawler.UpdateEnabled {
		a.producers = append(a.producers, crawlers.NewUpdateCrawler(
			channelStore, channelQueue,
			cfg.Crawler.UpdateInterval(),
			cfg.Crawler.MinRecrawlInterval(),
			cfg.Crawler.UpdateLastUploadMax(),
			clk, logger.Named("crawler.update"),
		))
	}
	if cfg.Crawler.DiscoveryEnabled {
		a.producers = append(a.producers, crawlers.NewDiscoveryCrawler(
			channelStore, additionalStore, settingsStore,
			yt, classifier, channelQueue,
			cfg.Crawler.DiscoveryInterval(), clk, logger.Named("crawler.discovery"),
		))
	}
	if cfg.Crawler.NewVideoEnabled {
		a.producers = append(a.producers, crawlers.NewNewVideoCrawler(
			channelStore, videoQueue,
			cfg.Crawler.NewVideoInterval(), logger.Named("crawler.newvideo"),
		))
	}

	// Exactly one consumer per queue. Sequential consumption is the quota
	// admission control: at most one metered call chain runs per queue, and
	// commands are processed in send order.
	a.consumers = append(a.consumers, scraper.NewChannelScraper(
		channelQueue, yt, classifier, detector,
		channelStore, videoStore, viewSnapshots, subscriberSnapshots,
		cfg.Crawler.MinRecrawlInterval(), clk, logger.Named("scraper.channel"),
	))
	a.consumers = append(a.consumers, scraper.NewVideoScraper(
		videoQueue, yt, videoStore, channelStore,
		staleness.New(), clk, logger.Named("scraper.video"),
	))

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(pool, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

// Run starts every loop and blocks until the context ends or a component
// fails fatally, then shuts everything down in order.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.logger.Info("ops server listening", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("ops server failed", zap.Error(err))
			cancel()
		}
	}()

	for _, p := range a.producers {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("producer stopped", zap.Error(err))
				cancel()
			}
		}()
	}
	for _, c := range a.consumers {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("consumer stopped", zap.Error(err))
				cancel()
			}
		}()
	}

	<-runCtx.Done()
	a.logger.Info("shutting down")

	a.channelQueue.Close()
	a.videoQueue.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("ops server shutdown failed", zap.Error(err))
	}

	wg.Wait()

	if err := a.negative.Close(); err != nil {
		a.logger.Warn("redis close failed", zap.Error(err))
	}
	a.pool.Close()

	a.logger.Info("shutdown complete")
	return nil
}
