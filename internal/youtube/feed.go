package youtube

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sailingchannels/crawler/internal/domain"
	"github.com/sailingchannels/crawler/internal/metrics"
)

// VideoFeedEntry is one upload from a channel's syndication feed.
type VideoFeedEntry struct {
	VideoID     string
	Title       string
	Description string
	Published   time.Time
	Updated     time.Time
	Views       int64
}

type videoFeed struct {
	Entries []videoFeedEntry `xml:"entry"`
}

type videoFeedEntry struct {
	VideoID   string `xml:"videoId"`
	Title     string `xml:"title"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
	Group     struct {
		Description string `xml:"description"`
		Community   struct {
			Statistics struct {
				Views int64 `xml:"views,attr"`
			} `xml:"statistics"`
		} `xml:"community"`
	} `xml:"group"`
}

// GetVideoFeed fetches a channel's upload feed. The endpoint is
// unauthenticated and consumes no quota. Malformed XML fails only this
// call.
func (c *Client) GetVideoFeed(ctx context.Context, channelID string) ([]VideoFeedEntry, error) {
	feedURL := fmt.Sprintf("%s?channel_id=%s", c.cfg.FeedBaseURL, channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.ObserveAPICall("feed", "error")
		return nil, fmt.Errorf("feed %s: %w", channelID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.ObserveAPICall("feed", "error")
		return nil, fmt.Errorf("feed %s: status %d: %w", channelID, resp.StatusCode, domain.ErrFeedUnavailable)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveAPICall("feed", "error")
		return nil, fmt.Errorf("feed %s: read body: %w", channelID, err)
	}

	var decoded videoFeed
	if err := xml.Unmarshal(body, &decoded); err != nil {
		metrics.ObserveAPICall("feed", "parse_error")
		return nil, fmt.Errorf("feed %s: parse: %w", channelID, err)
	}

	entries := make([]VideoFeedEntry, 0, len(decoded.Entries))
	for _, raw := range decoded.Entries {
		published, err := time.Parse(time.RFC3339, raw.Published)
		if err != nil {
			metrics.ObserveAPICall("feed", "parse_error")
			return nil, fmt.Errorf("feed %s: parse published %q: %w", channelID, raw.Published, err)
		}
		updated, err := time.Parse(time.RFC3339, raw.Updated)
		if err != nil {
			metrics.ObserveAPICall("feed", "parse_error")
			return nil, fmt.Errorf("feed %s: parse updated %q: %w", channelID, raw.Updated, err)
		}
		entries = append(entries, VideoFeedEntry{
			VideoID:     raw.VideoID,
			Title:       raw.Title,
			Description: raw.Group.Description,
			Published:   published,
			Updated:     updated,
			Views:       raw.Group.Community.Statistics.Views,
		})
	}

	metrics.ObserveAPICall("feed", "ok")
	return entries, nil
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

func lowercaseAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}
