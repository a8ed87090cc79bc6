package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/equitylab/screener-crawler/internal/output"
	"github.com/equitylab/screener-crawler/internal/screener"
)

func newCrawlCmd() *cobra.Command {
	var (
		region       string
		out          string
		maxPages     int
		timeoutSec   int
		useCache     bool
		cacheTTLMin  int
		cacheBackend string
		cacheDir     string
		noHeadless   bool
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the screener for one region and writes a CSV",
		Long: `Crawls every page of the equity screener filtered to the given
region and writes the deduplicated quotes to a CSV file. With --use-cache,
a fresh cached result for the region skips the browser entirely.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if noHeadless {
				cfg.Crawler.Headless = false
			}
			if cmd.Flags().Changed("cache-backend") {
				cfg.Cache.Backend = cacheBackend
			}
			if cmd.Flags().Changed("cache-dir") {
				cfg.Cache.Dir = cacheDir
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			svc, cleanup, err := buildService(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			req := screener.CrawlRequest{
				Region:   region,
				MaxPages: maxPages,
				UseCache: useCache,
				CacheTTL: time.Duration(cacheTTLMin) * time.Minute,
			}
			if cmd.Flags().Changed("timeout") {
				req.Timeout = time.Duration(timeoutSec) * time.Second
			} else {
				req.Timeout = cfg.PageTimeout()
			}
			if !cmd.Flags().Changed("cache-ttl") {
				req.CacheTTL = cfg.CacheTTL()
			}
			if !cmd.Flags().Changed("max-pages") {
				req.MaxPages = cfg.Crawler.MaxPages
			}

			result, err := svc.Run(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("crawl region %q: %w", region, err)
			}

			if err := output.WriteFile(out, result.Records); err != nil {
				return fmt.Errorf("write csv: %w", err)
			}

			logger.Info("crawl finished",
				zap.String("region", region),
				zap.String("source", result.Source),
				zap.Int("records", len(result.Records)),
				zap.Int("pages", result.Pages),
				zap.String("out", out))
			return nil
		},
	}

	cmd.Flags().StringVar(&region, "region", "", `region exactly as it appears in the screener filter, e.g. "Argentina"`)
	cmd.Flags().StringVar(&out, "out", "output/equities.csv", "path of the output CSV")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "page limit for the crawl (0 = all pages)")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 45, "per-page wait budget in seconds")
	cmd.Flags().BoolVar(&useCache, "use-cache", false, "reuse a fresh cached result for the region")
	cmd.Flags().IntVar(&cacheTTLMin, "cache-ttl", 30, "cache time-to-live in minutes")
	cmd.Flags().StringVar(&cacheBackend, "cache-backend", "file", "cache backend: file, redis, or memory")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", ".cache/screener", "directory for the file cache backend")
	cmd.Flags().BoolVar(&noHeadless, "no-headless", false, "run the browser with a visible window")
	_ = cmd.MarkFlagRequired("region")

	return cmd
}
