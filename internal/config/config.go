// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Environment    string               `mapstructure:"environment"`
	Server         ServerConfig         `mapstructure:"server"`
	DB             DBConfig             `mapstructure:"db"`
	Redis          RedisConfig          `mapstructure:"redis"`
	YouTube        YouTubeConfig        `mapstructure:"youtube"`
	DetectLanguage DetectLanguageConfig `mapstructure:"detect_language"`
	Crawler        CrawlerConfig        `mapstructure:"crawler"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DBConfig controls access to Postgres.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime_minutes"`
}

// RedisConfig controls the negative-cache store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// YouTubeConfig points the media client at the upstream API.
type YouTubeConfig struct {
	APIBaseURL     string `mapstructure:"api_base_url"`
	FeedBaseURL    string `mapstructure:"feed_base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// DetectLanguageConfig configures the language detection service.
type DetectLanguageConfig struct {
	BaseURL        string   `mapstructure:"base_url"`
	APIKeys        []string `mapstructure:"api_keys"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	MaxAttempts    int      `mapstructure:"max_attempts"`
}

// CrawlerConfig governs the scheduling loops and queues.
type CrawlerConfig struct {
	QueueDepth               int  `mapstructure:"queue_depth"`
	AdditionalEnabled        bool `mapstructure:"additional_enabled"`
	UpdateEnabled            bool `mapstructure:"update_enabled"`
	DiscoveryEnabled         bool `mapstructure:"discovery_enabled"`
	NewVideoEnabled          bool `mapstructure:"new_video_enabled"`
	AdditionalIntervalMin    int  `mapstructure:"additional_interval_minutes"`
	UpdateIntervalMin        int  `mapstructure:"update_interval_minutes"`
	DiscoveryIntervalHours   int  `mapstructure:"discovery_interval_hours"`
	NewVideoIntervalMin      int  `mapstructure:"new_video_interval_minutes"`
	MinRecrawlIntervalHours  int  `mapstructure:"min_recrawl_interval_hours"`
	UpdateLastUploadMaxWeeks int  `mapstructure:"update_last_upload_max_weeks"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("server.port", 8080)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_lifetime_minutes", 60)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("youtube.api_base_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("youtube.feed_base_url", "https://www.youtube.com/feeds/videos.xml")
	v.SetDefault("youtube.timeout_seconds", 15)
	v.SetDefault("detect_language.base_url", "https://ws.detectlanguage.com/0.2/detect")
	v.SetDefault("detect_language.timeout_seconds", 10)
	v.SetDefault("detect_language.max_attempts", 3)
	v.SetDefault("crawler.queue_depth", 50000)
	v.SetDefault("crawler.additional_enabled", true)
	v.SetDefault("crawler.update_enabled", true)
	v.SetDefault("crawler.discovery_enabled", true)
	v.SetDefault("crawler.new_video_enabled", true)
	v.SetDefault("crawler.additional_interval_minutes", 10)
	v.SetDefault("crawler.update_interval_minutes", 15)
	v.SetDefault("crawler.discovery_interval_hours", 24)
	v.SetDefault("crawler.new_video_interval_minutes", 5)
	v.SetDefault("crawler.min_recrawl_interval_hours", 24)
	v.SetDefault("crawler.update_last_upload_max_weeks", 52)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Crawler.QueueDepth <= 0 {
		return fmt.Errorf("crawler.queue_depth must be > 0")
	}
	if c.YouTube.TimeoutSeconds <= 0 {
		return fmt.Errorf("youtube.timeout_seconds must be > 0")
	}
	return nil
}

// AdditionalInterval returns the additional crawler cadence.
func (c CrawlerConfig) AdditionalInterval() time.Duration {
	return time.Duration(c.AdditionalIntervalMin) * time.Minute
}

// UpdateInterval returns the update crawler cadence.
func (c CrawlerConfig) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalMin) * time.Minute
}

// DiscoveryInterval returns the discovery crawler cadence.
func (c CrawlerConfig) DiscoveryInterval() time.Duration {
	return time.Duration(c.DiscoveryIntervalHours) * time.Hour
}

// NewVideoInterval returns the new-video crawler cadence.
func (c CrawlerConfig) NewVideoInterval() time.Duration {
	return time.Duration(c.NewVideoIntervalMin) * time.Minute
}

// MinRecrawlInterval returns the minimum delay between two scrapes of the
// same channel.
func (c CrawlerConfig) MinRecrawlInterval() time.Duration {
	return time.Duration(c.MinRecrawlIntervalHours) * time.Hour
}

// UpdateLastUploadMax returns how far back a channel's last upload may lie
// for it to stay in the update rotation.
func (c CrawlerConfig) UpdateLastUploadMax() time.Duration {
	return time.Duration(c.UpdateLastUploadMaxWeeks) * 7 * 24 * time.Hour
}
