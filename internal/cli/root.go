// Package cli defines the commands for the screener executable.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/equitylab/screener-crawler/internal/cache/file"
	"github.com/equitylab/screener-crawler/internal/cache/memory"
	"github.com/equitylab/screener-crawler/internal/cache/redisstore"
	"github.com/equitylab/screener-crawler/internal/clock/system"
	"github.com/equitylab/screener-crawler/internal/config"
	"github.com/equitylab/screener-crawler/internal/driver/chrome"
	"github.com/equitylab/screener-crawler/internal/hash/sha256"
	"github.com/equitylab/screener-crawler/internal/logging"
	"github.com/equitylab/screener-crawler/internal/metrics"
	"github.com/equitylab/screener-crawler/internal/screener"
	"github.com/equitylab/screener-crawler/internal/service"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "screener",
		Short: "Crawls a paginated equity screener into CSV.",
		Long: `screener drives a headless browser through the equity screener's
paginated, JavaScript-rendered table for one region, deduplicates the
extracted quotes, and writes them as CSV. Results can be cached per
region with a TTL so repeated runs skip the browser entirely.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.AddCommand(newCrawlCmd(), newServeCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the process-wide logger and
// metric collectors.
func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, err
	}
	metrics.Init()
	return cfg, logger, nil
}

// buildCacheStore constructs the configured CacheStore backend and a
// cleanup func for backends holding connections.
func buildCacheStore(cfg config.CacheConfig) (screener.CacheStore, func(), error) {
	switch cfg.Backend {
	case config.CacheBackendFile:
		store, err := file.New(file.Config{BaseDir: cfg.Dir})
		if err != nil {
			return nil, nil, fmt.Errorf("init file cache: %w", err)
		}
		return store, func() {}, nil
	case config.CacheBackendRedis:
		store, err := redisstore.New(redisstore.Config{URL: cfg.RedisURL})
		if err != nil {
			return nil, nil, fmt.Errorf("init redis cache: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	case config.CacheBackendMemory:
		return memory.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// buildService assembles the crawl service from configuration.
func buildService(cfg config.Config, logger *zap.Logger) (*service.Service, func(), error) {
	store, cleanup, err := buildCacheStore(cfg.Cache)
	if err != nil {
		return nil, nil, err
	}

	svc, err := service.New(service.Dependencies{
		NewDriver: func(pageTimeout time.Duration) screener.PaginationDriver {
			return chrome.New(chrome.Config{
				BaseURL:       cfg.Crawler.BaseURL,
				UserAgent:     cfg.Crawler.UserAgent,
				Headless:      cfg.Crawler.Headless,
				PageTimeout:   pageTimeout,
				NavigationQPS: cfg.Crawler.NavigationQPS,
			}, logger)
		},
		Store:          store,
		Clock:          system.New(),
		Hasher:         sha256.New(),
		CacheNamespace: cfg.Cache.Namespace,
		Logger:         logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}
