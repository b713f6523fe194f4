package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/meteo-crawler/internal/api"
	"github.com/JakeFAU/meteo-crawler/internal/batch"
)

// newServeCmd creates the 'serve' subcommand.
func newServeCmd() *cobra.Command {
	var withCrawl bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the generated site",
		Long: `Serves the generated site with health, readiness and Prometheus
endpoints. With --crawl, also refreshes the site on the batch schedule.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeCommand(cmd, withCrawl)
		},
	}
	cmd.Flags().BoolVar(&withCrawl, "crawl", false, "crawl periodically while serving")
	cmd.Flags().Int("port", 8080, "listen port")
	cmd.Flags().IntP("workers", "w", 4, "concurrent zone tasks (0 crawls sequentially)")
	return cmd
}

func runServeCommand(cmd *cobra.Command, withCrawl bool) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	cfg := a.Config()
	logger := a.Logger()

	opts := api.Options{Fs: a.Fs(), WWWDir: cfg.Paths.WWW, Logger: logger}
	if withCrawl {
		runner := batch.New(a.Engine(), cfg.Schedule.IntervalHours, logger)
		if err := runner.Start(ctx); err != nil {
			return err
		}
		defer runner.Stop()
		opts.Status = runner
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(opts).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.Info("HTTP server stopped.")
	return nil
}
