// Package app builds the long-lived services of a crawl from configuration,
// acting as the dependency injection container of the commands.
package app

import (
	"context"
	"fmt"

	gcsstorage "cloud.google.com/go/storage"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/JakeFAU/meteo-crawler/internal/config"
	"github.com/JakeFAU/meteo-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/meteo-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/meteo-crawler/internal/httpcache"
	"github.com/JakeFAU/meteo-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/meteo-crawler/internal/site"
	"github.com/JakeFAU/meteo-crawler/internal/storage"
	"github.com/JakeFAU/meteo-crawler/internal/storage/gcs"
	"github.com/JakeFAU/meteo-crawler/internal/storage/local"
	"github.com/JakeFAU/meteo-crawler/internal/svgmap"
	"github.com/JakeFAU/meteo-crawler/internal/window"
	"github.com/JakeFAU/meteo-crawler/internal/zone"
)

// GCSClientFactory creates Cloud Storage clients.
type GCSClientFactory interface {
	NewClient(ctx context.Context) (*gcsstorage.Client, error)
}

// DefaultGCSClientFactory uses Application Default Credentials.
type DefaultGCSClientFactory struct{}

// NewClient creates a client from the environment's credentials.
func (DefaultGCSClientFactory) NewClient(ctx context.Context) (*gcsstorage.Client, error) {
	client, err := gcsstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return client, nil
}

// Options overrides the defaults used by New.
type Options struct {
	// Fs holds caches and, for the local backend, the site. Defaults to the OS filesystem.
	Fs afero.Fs
	// GCS defaults to DefaultGCSClientFactory.
	GCS GCSClientFactory
}

// App holds the services shared by the commands.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	fs      afero.Fs
	session *httpcache.Session
	writer  storage.Writer
	engine  *crawler.Engine
	gcs     *gcsstorage.Client
}

// New wires a crawl engine for cfg. It fails fast on storage errors.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.GCS == nil {
		opts.GCS = DefaultGCSClientFactory{}
	}
	a := &App{cfg: cfg, logger: logger, fs: opts.Fs}

	if err := a.initWriter(ctx, opts.GCS); err != nil {
		return nil, err
	}

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.HTTP.RequestsPerSecond,
		DefaultBurst: cfg.HTTP.Burst,
	})
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.RequestTimeout(),
		Limiter:   limiter,
	})
	a.session = httpcache.New(httpcache.Options{
		Enabled:   cfg.HTTP.CacheEnabled,
		Fs:        opts.Fs,
		Dir:       cfg.Paths.Cache,
		Transport: fetcher,
		Logger:    logger,
	})

	engine, err := crawler.New(crawler.Config{
		BaseURL:        cfg.Crawler.BaseURL,
		Workers:        cfg.Crawler.Workers,
		CacheAssets:    cfg.Crawler.CacheAssets,
		CacheForecasts: cfg.Crawler.CacheForecasts,
		SVGDir:         cfg.Paths.SVG,
		Margins:        svgmap.DefaultMargins,
	}, crawler.Deps{
		Session: a.session,
		Filter:  zone.NewFilter(cfg.Crawler.DeniedZones, cfg.Crawler.TestMode, cfg.Crawler.SampleZone),
		Writer:  a.writer,
		Emitter: site.NewEmitter(a.writer, site.Dirs{WWW: cfg.Paths.WWW, Data: cfg.Paths.Data}),
		Window:  window.Options{Fs: opts.Fs, Dir: cfg.Paths.Cache, Logger: logger},
		Logger:  logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init crawler: %w", err)
	}
	a.engine = engine
	return a, nil
}

func (a *App) initWriter(ctx context.Context, factory GCSClientFactory) error {
	switch a.cfg.Storage.Backend {
	case config.BackendGCS:
		client, err := factory.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		w, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket, Prefix: a.cfg.Storage.Prefix})
		if err != nil {
			_ = client.Close()
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		a.gcs = client
		a.writer = w
		a.logger.Info("Using GCS storage", zap.String("bucket", a.cfg.Storage.GCSBucket))
	default:
		w, err := local.New(local.Config{Fs: a.fs, BaseDir: "."})
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		a.writer = w
	}
	return nil
}

// Engine returns the crawl engine.
func (a *App) Engine() *crawler.Engine {
	return a.engine
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Fs returns the filesystem holding caches and the local site.
func (a *App) Fs() afero.Fs {
	return a.fs
}

// Close releases the storage client, if any.
func (a *App) Close() {
	if a.gcs == nil {
		return
	}
	if err := a.gcs.Close(); err != nil {
		a.logger.Warn("Failed to close GCS client", zap.Error(err))
	}
	a.gcs = nil
}
