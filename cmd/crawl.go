package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/meteo-crawler/internal/batch"
)

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	var prod bool
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the zone tree and writes the site",
		Long: `Runs one crawl of the whole zone tree and writes pages, data scripts
and maps. With --prod, crawls again every schedule.interval_hours hours until
interrupted; a failing run is logged and the next one still happens.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawlCommand(cmd, prod)
		},
	}
	cmd.Flags().BoolVarP(&prod, "prod", "p", false, "crawl periodically until interrupted")
	cmd.Flags().BoolP("test", "t", false, "crawl a single region only")
	cmd.Flags().IntP("workers", "w", 4, "concurrent zone tasks (0 crawls sequentially)")
	cmd.Flags().BoolP("refresh-assets", "r", false, "ignore cached pages, maps and pictograms")
	cmd.Flags().BoolP("old-prevs", "o", false, "reuse cached forecasts instead of downloading new ones")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, prod bool) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	logger := a.Logger()

	if prod {
		runner := batch.New(a.Engine(), a.Config().Schedule.IntervalHours, logger)
		if err := runner.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		runner.Stop()
		logger.Info("Crawl schedule stopped.")
		return nil
	}

	stats, err := a.Engine().Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawler: %w", err)
	}
	logger.Info("Crawl command finished.",
		zap.String("run_id", stats.RunID),
		zap.Int("zones", stats.Zones),
		zap.Int("failed", stats.Failed),
	)
	return nil
}
