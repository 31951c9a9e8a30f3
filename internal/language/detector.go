// Package language detects the language of channel text via the
// detectlanguage.com API.
package language

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config controls the Detector.
type Config struct {
	BaseURL     string
	APIKeys     []string
	Timeout     time.Duration
	MaxAttempts int
}

// Detector calls the external detection service with a bounded number of
// jittered, exponentially backed-off attempts. After the attempts are
// exhausted the call is abandoned; the caller retries on its next natural
// cycle rather than looping in place.
type Detector struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger

	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewDetector builds a Detector.
func NewDetector(cfg Config, logger *zap.Logger) *Detector {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Detector{
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
		baseDelay: 250 * time.Millisecond,
		maxDelay:  5 * time.Second,
	}
}

type detectionResponse struct {
	Data struct {
		Detections []struct {
			Language   string  `json:"language"`
			IsReliable bool    `json:"isReliable"`
			Confidence float64 `json:"confidence"`
		} `json:"detections"`
	} `json:"data"`
}

// Detect returns the lowercase language code of the text, or an empty
// string when detection yielded no reliable result.
func (d *Detector) Detect(ctx context.Context, text string) (string, error) {
	if len(d.cfg.APIKeys) == 0 {
		return "", fmt.Errorf("no detection api keys configured")
	}
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	var lastErr error
	for attempt := 0; attempt < d.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(d.backoff(attempt)):
			}
		}

		lang, err := d.detectOnce(ctx, text)
		if err == nil {
			return lang, nil
		}
		lastErr = err
		d.logger.Debug("language detection attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return "", fmt.Errorf("detect language: %w", lastErr)
}

func (d *Detector) detectOnce(ctx context.Context, text string) (string, error) {
	form := url.Values{"q": {text}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+d.pickKey())

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call detection service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("detection service status %d", resp.StatusCode)
	}

	var decoded detectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode detection response: %w", err)
	}

	if len(decoded.Data.Detections) == 0 || !decoded.Data.Detections[0].IsReliable {
		return "", nil
	}
	return strings.ToLower(decoded.Data.Detections[0].Language), nil
}

// pickKey selects a key uniformly at random to spread load across the pool.
func (d *Detector) pickKey() string {
	return d.cfg.APIKeys[rand.Intn(len(d.cfg.APIKeys))]
}

func (d *Detector) backoff(attempt int) time.Duration {
	delay := d.baseDelay << uint(attempt)
	if delay > d.maxDelay {
		delay = d.maxDelay
	}
	half := delay / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
