// Package batch repeats crawl runs on a fixed schedule. A failing or panicking
// run is logged and the schedule carries on.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/JakeFAU/meteo-crawler/internal/crawler"
)

// Crawler runs one crawl. *crawler.Engine satisfies it.
type Crawler interface {
	Run(ctx context.Context) (crawler.Stats, error)
}

// Status describes the most recent run.
type Status struct {
	Runs      int           `json:"runs"`
	Running   bool          `json:"running"`
	LastStart time.Time     `json:"last_start,omitempty"`
	LastStats crawler.Stats `json:"last_stats"`
	LastError string        `json:"last_error,omitempty"`
}

// Runner owns the schedule. Runs never overlap.
type Runner struct {
	crawler  Crawler
	interval int
	logger   *zap.Logger

	runMu sync.Mutex

	mu     sync.Mutex
	status Status

	scheduler *gocron.Scheduler
}

// New creates a Runner repeating every intervalHours hours.
func New(c Crawler, intervalHours int, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if intervalHours <= 0 {
		intervalHours = 4
	}
	return &Runner{
		crawler:   c,
		interval:  intervalHours,
		logger:    logger.Named("batch"),
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

// RunOnce performs one crawl, converting a panic into an error.
func (r *Runner) RunOnce(ctx context.Context) (stats crawler.Stats, err error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	start := time.Now()
	r.mu.Lock()
	r.status.Running = true
	r.status.LastStart = start
	r.mu.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("crawl panicked: %v", rec)
		}
		r.mu.Lock()
		r.status.Runs++
		r.status.Running = false
		r.status.LastStats = stats
		r.status.LastError = ""
		if err != nil {
			r.status.LastError = err.Error()
		}
		r.mu.Unlock()
	}()

	return r.crawler.Run(ctx)
}

// Start schedules runs every interval, the first one immediately, and returns.
func (r *Runner) Start(ctx context.Context) error {
	_, err := r.scheduler.Every(r.interval).Hours().SingletonMode().Do(func() {
		stats, err := r.RunOnce(ctx)
		if err != nil {
			r.logger.Error("crawl run failed", zap.String("run_id", stats.RunID), zap.Error(err))
			return
		}
		r.logger.Info("crawl run completed",
			zap.String("run_id", stats.RunID),
			zap.Int("zones", stats.Zones),
			zap.Duration("duration", stats.Duration),
		)
	})
	if err != nil {
		return fmt.Errorf("schedule crawl: %w", err)
	}
	r.scheduler.StartAsync()
	r.logger.Info("crawl scheduled", zap.Int("interval_hours", r.interval))
	return nil
}

// Stop cancels future runs. A run in progress finishes on its own.
func (r *Runner) Stop() {
	r.scheduler.Stop()
}

// Status reports the latest run.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}
