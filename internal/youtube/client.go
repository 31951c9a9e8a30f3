// Package youtube is the typed client for the upstream video platform API.
//
// Every quota-metered call selects a credential through the key manager
// first and records usage after a successful response, so concurrent
// callers share the daily budget through the backing store.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/sailingchannels/crawler/internal/domain"
	"github.com/sailingchannels/crawler/internal/metrics"
)

const maxPageSize = "50"

// KeyManager supplies and charges API credentials.
type KeyManager interface {
	SelectKey(ctx context.Context) (domain.APIKey, error)
	RecordUsage(ctx context.Context, key domain.APIKey) error
}

// Config controls the Client.
type Config struct {
	APIBaseURL  string
	FeedBaseURL string
	Timeout     time.Duration
}

// Client calls the platform's JSON API and syndication feed.
type Client struct {
	cfg    Config
	client *http.Client
	keys   KeyManager
	logger *zap.Logger
}

// NewClient builds a Client.
func NewClient(cfg Config, keys KeyManager, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		keys:   keys,
		logger: logger,
	}
}

// ChannelDetails is the flattened channel metadata returned upstream.
// Counter values stay strings; callers parse them defensively.
type ChannelDetails struct {
	ID                    string
	Title                 string
	Description           string
	PublishedAt           time.Time
	Thumbnail             string
	Country               string
	Keywords              string
	ViewCount             string
	SubscriberCount       string
	HiddenSubscriberCount bool
}

// SubscriptionTarget is one channel another channel subscribes to.
type SubscriptionTarget struct {
	ChannelID   string
	Title       string
	Description string
}

// VideoDetails is the full metadata of a single video.
type VideoDetails struct {
	ID              string
	Title           string
	Description     string
	PublishedAt     time.Time
	Tags            []string
	Views           int64
	Likes           int64
	Comments        int64
	Privacy         string
	DefaultLanguage string
}

type channelListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string    `json:"title"`
			Description string    `json:"description"`
			PublishedAt time.Time `json:"publishedAt"`
			Country     string    `json:"country"`
			Thumbnails  struct {
				Default struct {
					URL string `json:"url"`
				} `json:"default"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount             string `json:"viewCount"`
			SubscriberCount       string `json:"subscriberCount"`
			HiddenSubscriberCount bool   `json:"hiddenSubscriberCount"`
		} `json:"statistics"`
		BrandingSettings struct {
			Channel struct {
				Keywords string `json:"keywords"`
			} `json:"channel"`
		} `json:"brandingSettings"`
	} `json:"items"`
}

type subscriptionListResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			ResourceID  struct {
				Kind      string `json:"kind"`
				ChannelID string `json:"channelId"`
			} `json:"resourceId"`
		} `json:"snippet"`
	} `json:"items"`
}

type videoListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title           string    `json:"title"`
			Description     string    `json:"description"`
			PublishedAt     time.Time `json:"publishedAt"`
			Tags            []string  `json:"tags"`
			DefaultLanguage string    `json:"defaultLanguage"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
		Status struct {
			PrivacyStatus string `json:"privacyStatus"`
		} `json:"status"`
	} `json:"items"`
}

// GetChannelDetails fetches metadata for one channel.
func (c *Client) GetChannelDetails(ctx context.Context, channelID string) (ChannelDetails, error) {
	query := url.Values{
		"part": {"snippet,statistics,brandingSettings"},
		"id":   {channelID},
	}

	var decoded channelListResponse
	if err := c.getAuthenticated(ctx, "channels", query, &decoded); err != nil {
		return ChannelDetails{}, err
	}

	if len(decoded.Items) == 0 {
		return ChannelDetails{}, fmt.Errorf("channel %s: %w", channelID, domain.ErrNotFound)
	}

	item := decoded.Items[0]
	return ChannelDetails{
		ID:                    item.ID,
		Title:                 item.Snippet.Title,
		Description:           item.Snippet.Description,
		PublishedAt:           item.Snippet.PublishedAt,
		Thumbnail:             item.Snippet.Thumbnails.Default.URL,
		Country:               item.Snippet.Country,
		Keywords:              item.BrandingSettings.Channel.Keywords,
		ViewCount:             item.Statistics.ViewCount,
		SubscriberCount:       item.Statistics.SubscriberCount,
		HiddenSubscriberCount: item.Statistics.HiddenSubscriberCount,
	}, nil
}

// GetChannelSubscriptions returns every channel the given channel
// subscribes to, paginating until the continuation token is exhausted.
// Non-channel resources are filtered out. The result is collected eagerly;
// page-size limits upstream bound its cardinality.
func (c *Client) GetChannelSubscriptions(ctx context.Context, channelID string) ([]SubscriptionTarget, error) {
	var targets []SubscriptionTarget
	pageToken := ""

	for {
		query := url.Values{
			"part":       {"snippet"},
			"maxResults": {maxPageSize},
			"channelId":  {channelID},
		}
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		var decoded subscriptionListResponse
		if err := c.getAuthenticated(ctx, "subscriptions", query, &decoded); err != nil {
			return nil, err
		}

		for _, item := range decoded.Items {
			if item.Snippet.ResourceID.Kind != "youtube#channel" {
				continue
			}
			targets = append(targets, SubscriptionTarget{
				ChannelID:   item.Snippet.ResourceID.ChannelID,
				Title:       item.Snippet.Title,
				Description: item.Snippet.Description,
			})
		}

		if decoded.NextPageToken == "" {
			return targets, nil
		}
		pageToken = decoded.NextPageToken
	}
}

// GetVideoDetails fetches full metadata for one video.
func (c *Client) GetVideoDetails(ctx context.Context, videoID string) (VideoDetails, error) {
	query := url.Values{
		"part": {"snippet,statistics,status"},
		"id":   {videoID},
	}

	var decoded videoListResponse
	if err := c.getAuthenticated(ctx, "videos", query, &decoded); err != nil {
		return VideoDetails{}, err
	}

	if len(decoded.Items) == 0 {
		return VideoDetails{}, fmt.Errorf("video %s: %w", videoID, domain.ErrNotFound)
	}

	item := decoded.Items[0]
	return VideoDetails{
		ID:              item.ID,
		Title:           item.Snippet.Title,
		Description:     item.Snippet.Description,
		PublishedAt:     item.Snippet.PublishedAt,
		Tags:            lowercaseAll(item.Snippet.Tags),
		Views:           parseCount(item.Statistics.ViewCount),
		Likes:           parseCount(item.Statistics.LikeCount),
		Comments:        parseCount(item.Statistics.CommentCount),
		Privacy:         item.Status.PrivacyStatus,
		DefaultLanguage: item.Snippet.DefaultLanguage,
	}, nil
}

// getAuthenticated performs one metered GET: select key, call, classify
// status, record usage on success.
func (c *Client) getAuthenticated(ctx context.Context, endpoint string, query url.Values, out any) error {
	key, err := c.keys.SelectKey(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	query.Set("key", key.Key)

	reqURL := fmt.Sprintf("%s/%s?%s", c.cfg.APIBaseURL, endpoint, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", endpoint, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.ObserveAPICall(endpoint, "error")
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		metrics.ObserveAPICall(endpoint, "quota_exceeded")
		return fmt.Errorf("%s: status %d: %w", endpoint, resp.StatusCode, domain.ErrQuotaExceeded)
	default:
		metrics.ObserveAPICall(endpoint, "error")
		return fmt.Errorf("%s: unexpected status %d", endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.ObserveAPICall(endpoint, "parse_error")
		return fmt.Errorf("%s: decode response: %w", endpoint, err)
	}

	metrics.ObserveAPICall(endpoint, "ok")
	if err := c.keys.RecordUsage(ctx, key); err != nil {
		c.logger.Warn("record key usage failed", zap.Error(err))
	}
	return nil
}
