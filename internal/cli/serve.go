package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/equitylab/screener-crawler/internal/api"
	"github.com/equitylab/screener-crawler/internal/clock/system"
	"github.com/equitylab/screener-crawler/internal/id/uuid"
	"github.com/equitylab/screener-crawler/internal/jobs"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the crawl HTTP API",
		Long: `Starts an HTTP server exposing synchronous and asynchronous crawl
endpoints plus health and Prometheus metrics routes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			svc, cleanup, err := buildService(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			server := api.NewServer(
				svc,
				jobs.NewRegistry(system.New()),
				uuid.New(),
				logger,
				api.Config{
					SyncTimeout:    time.Duration(cfg.Server.SyncTimeoutSeconds) * time.Second,
					MaxAsyncCrawls: cfg.Server.MaxAsyncCrawls,
				},
			)

			httpServer := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:           server.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("http server: %w", err)
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown http server: %w", err)
			}
			logger.Info("http server stopped")
			return nil
		},
	}
	return cmd
}
