package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"server"`

	Database struct {
		DSN             string `yaml:"dsn"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		MaxIdleConns    int    `yaml:"max_idle_conns"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime"`
	} `yaml:"database"`

	Cache struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"cache"`

	Feed FeedConfig `yaml:"feed"`

	Auth struct {
		Secret   string        `yaml:"secret"`
		TokenTTL time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`
}

// FeedConfig holds feed assembly and caching settings
type FeedConfig struct {
	MaxLookbackDays         int           `yaml:"max_lookback_days"`
	TopListSize             int           `yaml:"top_list_size"`
	AdPoolSize              int           `yaml:"ad_pool_size"`
	DefaultAdFrequency      int           `yaml:"default_ad_frequency"`
	DefaultAstonAdFrequency int           `yaml:"default_aston_ad_frequency"`
	TopListTTL              time.Duration `yaml:"top_list_ttl"`
	FeedTTL                 time.Duration `yaml:"feed_ttl"`
	BannerTTL               time.Duration `yaml:"banner_ttl"`
	DetailTTL               time.Duration `yaml:"detail_ttl"`
	SettingsTTL             time.Duration `yaml:"settings_ttl"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// set defaults for server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}

	// set defaults for database
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:newsapi.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 3600
	}

	// set defaults for cache
	if cfg.Cache.Address == "" {
		cfg.Cache.Address = "localhost:6379"
	}

	// set defaults for feed
	if cfg.Feed.MaxLookbackDays == 0 {
		cfg.Feed.MaxLookbackDays = 30
	}
	if cfg.Feed.TopListSize == 0 {
		cfg.Feed.TopListSize = 10
	}
	if cfg.Feed.AdPoolSize == 0 {
		cfg.Feed.AdPoolSize = 50
	}
	if cfg.Feed.DefaultAdFrequency == 0 {
		cfg.Feed.DefaultAdFrequency = 5
	}
	if cfg.Feed.DefaultAstonAdFrequency == 0 {
		cfg.Feed.DefaultAstonAdFrequency = 3
	}
	if cfg.Feed.TopListTTL == 0 {
		cfg.Feed.TopListTTL = time.Minute
	}
	if cfg.Feed.FeedTTL == 0 {
		cfg.Feed.FeedTTL = time.Minute
	}
	if cfg.Feed.BannerTTL == 0 {
		cfg.Feed.BannerTTL = 5 * time.Minute
	}
	if cfg.Feed.DetailTTL == 0 {
		cfg.Feed.DetailTTL = 5 * time.Minute
	}
	if cfg.Feed.SettingsTTL == 0 {
		cfg.Feed.SettingsTTL = 5 * time.Minute
	}

	// set defaults for auth
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// validate checks configuration for correctness
func validate(cfg *Config) error {

	// validate server config
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	// validate cache config
	if cfg.Cache.Enabled && cfg.Cache.Address == "" {
		return fmt.Errorf("cache.address is required when cache is enabled")
	}
	if cfg.Cache.DB < 0 {
		return fmt.Errorf("cache.db must be non-negative")
	}

	// validate feed config
	if cfg.Feed.MaxLookbackDays < 1 {
		return fmt.Errorf("feed.max_lookback_days must be at least 1")
	}
	if cfg.Feed.TopListSize < 1 {
		return fmt.Errorf("feed.top_list_size must be at least 1")
	}
	if cfg.Feed.DefaultAdFrequency < 1 {
		return fmt.Errorf("feed.default_ad_frequency must be at least 1")
	}
	if cfg.Feed.DefaultAstonAdFrequency < 1 {
		return fmt.Errorf("feed.default_aston_ad_frequency must be at least 1")
	}

	// validate auth config
	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required")
	}

	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// GetFeedConfig returns feed assembly configuration
func (c *Config) GetFeedConfig() FeedConfig {
	return c.Feed
}
