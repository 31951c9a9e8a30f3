// Package relevance decides whether a channel's text content matches the
// curated sailing term list.
package relevance

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sailingchannels/crawler/internal/domain"
)

// Result is the outcome of a classification.
type Result struct {
	IsRelevant    bool
	IsBlacklisted bool
}

// Classifier matches channel text against the term list, applies the
// blacklist override and maintains the negative cache. Term and blacklist
// sets are loaded once per worker lifetime; staleness across a deploy cycle
// is acceptable.
type Classifier struct {
	terms     []string
	blacklist map[string]struct{}
	negative  domain.NegativeCache
	logger    *zap.Logger
}

// NewClassifier loads the term list and blacklist and builds a Classifier.
func NewClassifier(
	ctx context.Context,
	terms domain.TermRepository,
	blacklist domain.BlacklistRepository,
	negative domain.NegativeCache,
	logger *zap.Logger,
) (*Classifier, error) {
	termList, err := terms.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load terms: %w", err)
	}
	for i, term := range termList {
		termList[i] = strings.ToLower(term)
	}

	blacklisted, err := blacklist.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load blacklist: %w", err)
	}
	blackSet := make(map[string]struct{}, len(blacklisted))
	for _, id := range blacklisted {
		blackSet[id] = struct{}{}
	}

	return &Classifier{
		terms:     termList,
		blacklist: blackSet,
		negative:  negative,
		logger:    logger,
	}, nil
}

// Classify runs the term match for one channel. A no-match with the filter
// active records a negative-cache entry as a side effect; a cache write
// failure is logged, never surfaced. The blacklist overrides everything,
// including the ignore flag.
func (c *Classifier) Classify(ctx context.Context, channelID, title, description string, ignoreFilter bool) Result {
	relevant := false

	title = strings.ToLower(title)
	description = strings.ToLower(description)
	for _, term := range c.terms {
		if strings.Contains(title, term) || strings.Contains(description, term) {
			relevant = true
			break
		}
	}

	if !relevant && !ignoreFilter {
		if err := c.negative.Add(ctx, channelID); err != nil {
			c.logger.Warn("negative cache write failed",
				zap.String("channel_id", channelID),
				zap.Error(err),
			)
		}
	}

	if ignoreFilter {
		relevant = true
	}

	if _, blacklisted := c.blacklist[channelID]; blacklisted {
		return Result{IsRelevant: false, IsBlacklisted: true}
	}

	return Result{IsRelevant: relevant}
}

// IsKnownNonRelevant reports whether the channel was already classified as
// not relevant. Used by discovery to avoid re-queuing rejected channels
// without re-running classification. A cache read failure counts as
// unknown.
func (c *Classifier) IsKnownNonRelevant(ctx context.Context, channelID string) bool {
	known, err := c.negative.Exists(ctx, channelID)
	if err != nil {
		c.logger.Warn("negative cache read failed",
			zap.String("channel_id", channelID),
			zap.Error(err),
		)
		return false
	}
	return known
}
