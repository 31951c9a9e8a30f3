// Package rediscache keeps the set of channels already classified as not
// relevant, so discovery sweeps skip them without spending API quota.
package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "nonrelevant:"

// Config holds the Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NegativeCache records channel ids that failed the relevance filter.
// Entries never expire; a channel re-enters consideration only through the
// operator allow list, which bypasses the filter entirely.
type NegativeCache struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*NegativeCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &NegativeCache{client: client}, nil
}

// Add marks a channel as not relevant.
func (c *NegativeCache) Add(ctx context.Context, channelID string) error {
	if err := c.client.Set(ctx, keyPrefix+channelID, time.Now().UTC().Unix(), 0).Err(); err != nil {
		return fmt.Errorf("cache non-relevant channel %s: %w", channelID, err)
	}
	return nil
}

// Exists reports whether a channel was previously classified as not
// relevant.
func (c *NegativeCache) Exists(ctx context.Context, channelID string) (bool, error) {
	n, err := c.client.Exists(ctx, keyPrefix+channelID).Result()
	if err != nil {
		return false, fmt.Errorf("check non-relevant channel %s: %w", channelID, err)
	}
	return n > 0, nil
}

// Close releases the underlying connection pool.
func (c *NegativeCache) Close() error {
	return c.client.Close()
}
