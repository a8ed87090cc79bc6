// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Cache backend names accepted in configuration.
const (
	CacheBackendFile   = "file"
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port               int `mapstructure:"port"`
	MaxAsyncCrawls     int `mapstructure:"max_async_crawls"`
	SyncTimeoutSeconds int `mapstructure:"sync_timeout_seconds"`
}

// CrawlerConfig governs the browser driver and traversal defaults.
type CrawlerConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	UserAgent      string  `mapstructure:"user_agent"`
	Headless       bool    `mapstructure:"headless"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	MaxPages       int     `mapstructure:"max_pages"`
	NavigationQPS  float64 `mapstructure:"navigation_qps"`
}

// CacheConfig selects and parameterizes the result cache backend.
type CacheConfig struct {
	Backend    string `mapstructure:"backend"`
	Dir        string `mapstructure:"dir"`
	RedisURL   string `mapstructure:"redis_url"`
	Namespace  string `mapstructure:"namespace"`
	TTLMinutes int    `mapstructure:"ttl_minutes"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk and environment. path may be empty, in
// which case defaults plus SCREENER_* env vars apply.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCREENER")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_async_crawls", 2)
	v.SetDefault("server.sync_timeout_seconds", 300)

	v.SetDefault("crawler.base_url", "https://finance.yahoo.com/research-hub/screener/equity/")
	v.SetDefault("crawler.user_agent", "")
	v.SetDefault("crawler.headless", true)
	v.SetDefault("crawler.timeout_seconds", 45)
	v.SetDefault("crawler.max_pages", 0)
	v.SetDefault("crawler.navigation_qps", 0.5)

	v.SetDefault("cache.backend", CacheBackendFile)
	v.SetDefault("cache.dir", ".cache/screener")
	v.SetDefault("cache.redis_url", "redis://localhost:6379/0")
	v.SetDefault("cache.namespace", "screener:quotes")
	v.SetDefault("cache.ttl_minutes", 30)

	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.MaxAsyncCrawls <= 0 {
		return fmt.Errorf("server.max_async_crawls must be > 0")
	}
	if c.Crawler.BaseURL == "" {
		return fmt.Errorf("crawler.base_url must be set")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Crawler.MaxPages < 0 {
		return fmt.Errorf("crawler.max_pages must be >= 0")
	}
	if c.Crawler.NavigationQPS < 0 {
		return fmt.Errorf("crawler.navigation_qps must be >= 0")
	}
	switch c.Cache.Backend {
	case CacheBackendFile:
		if c.Cache.Dir == "" {
			return fmt.Errorf("cache.dir must be set for the file backend")
		}
	case CacheBackendRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache.redis_url must be set for the redis backend")
		}
	case CacheBackendMemory:
	default:
		return fmt.Errorf("unknown cache.backend %q", c.Cache.Backend)
	}
	if c.Cache.TTLMinutes <= 0 {
		return fmt.Errorf("cache.ttl_minutes must be > 0")
	}
	return nil
}

// PageTimeout converts the crawler timeout into a duration.
func (c Config) PageTimeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutSeconds) * time.Second
}

// CacheTTL converts the cache TTL into a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}
