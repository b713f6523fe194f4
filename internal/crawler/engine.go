// Package crawler walks the zone tree of the weather site. Each zone task
// fetches its page, fans out to its children, then collects its own
// forecasts and assets and emits the zone's page and data script.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/meteo-crawler/internal/auth"
	"github.com/JakeFAU/meteo-crawler/internal/metrics"
	"github.com/JakeFAU/meteo-crawler/internal/site"
	"github.com/JakeFAU/meteo-crawler/internal/storage"
	"github.com/JakeFAU/meteo-crawler/internal/svgmap"
	"github.com/JakeFAU/meteo-crawler/internal/window"
	"github.com/JakeFAU/meteo-crawler/internal/worker"
	"github.com/JakeFAU/meteo-crawler/internal/zone"
)

// RootPath is the site path of the country-wide zone every run starts from.
const RootPath = "/"

// Session is the run-scoped asset cache. *httpcache.Session satisfies it.
type Session interface {
	Scope(fn func() error) error
	Fetch(ctx context.Context, rawURL string, params url.Values, useCache bool) (string, error)
	SetAuth(token string)
	Cookie(rawURL, name string) (string, bool)
	Stats() (hits, misses int)
}

// Config controls a crawl.
type Config struct {
	BaseURL string
	// Workers bounds concurrent zone tasks. Zero walks the tree depth-first
	// in one goroutine and stops at the first failing zone.
	Workers        int
	CacheAssets    bool
	CacheForecasts bool
	// SVGDir receives cropped maps and pictograms.
	SVGDir  string
	Margins svgmap.Margins
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Session Session
	Filter  *zone.Filter
	Writer  storage.Writer
	Emitter *site.Emitter
	Window  window.Options
	Now     func() time.Time
	Logger  *zap.Logger
}

// Stats summarizes one run.
type Stats struct {
	RunID    string
	Zones    int
	Failed   int
	Hits     int
	Misses   int
	Duration time.Duration
}

// Engine runs crawls. Runs must not overlap; the session is shared.
type Engine struct {
	cfg  Config
	deps Deps
}

// New builds an Engine.
func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Session == nil {
		return nil, errors.New("crawler: session is required")
	}
	if deps.Writer == nil || deps.Emitter == nil {
		return nil, errors.New("crawler: writer and emitter are required")
	}
	if cfg.Workers < 0 {
		return nil, errors.New("crawler: workers must be >= 0")
	}
	if cfg.Margins == (svgmap.Margins{}) {
		cfg.Margins = svgmap.DefaultMargins
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Window.Now == nil {
		deps.Window.Now = deps.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, deps: deps}, nil
}

// run is the state of one crawl.
type run struct {
	*Engine
	pool   *worker.Pool
	logger *zap.Logger
	zones  atomic.Int64
	failed atomic.Int64
}

// Run crawls the whole tree once. Zone failures are logged and counted; in
// pooled mode they do not stop sibling subtrees and are returned joined.
func (e *Engine) Run(ctx context.Context) (Stats, error) {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	r := &run{Engine: e}
	r.logger = e.deps.Logger.Named("crawler").With(zap.String("run_id", id.String()))
	r.pool = worker.New(e.cfg.Workers, r.logger)

	start := time.Now()
	r.logger.Info("crawl started", zap.Int("workers", e.cfg.Workers))
	runErr := e.deps.Session.Scope(func() error {
		r.pool.Submit(ctx, RootPath, func(ctx context.Context) error {
			return r.visit(ctx, RootPath, nil)
		})
		return r.pool.Wait(ctx)
	})

	hits, misses := e.deps.Session.Stats()
	stats := Stats{
		RunID:    id.String(),
		Zones:    int(r.zones.Load()),
		Failed:   int(r.failed.Load()),
		Hits:     hits,
		Misses:   misses,
		Duration: time.Since(start),
	}
	status := "ok"
	if runErr != nil {
		status = "failed"
	}
	metrics.ObserveRun(status, stats.Duration)
	r.logger.Info("crawl finished",
		zap.Int("zones", stats.Zones),
		zap.Int("failed", stats.Failed),
		zap.Int("cache_hits", hits),
		zap.Int("cache_misses", misses),
		zap.Duration("duration", stats.Duration),
	)
	return stats, runErr
}

// visit handles one zone. Children are handed out before the zone's own
// related data is fetched.
func (r *run) visit(ctx context.Context, path string, parent *zone.Zone) error {
	z, err := r.discover(ctx, path, parent)
	if err != nil {
		r.fail(path, err)
		return err
	}

	for _, child := range z.ChildPaths(r.deps.Filter) {
		child := child
		if r.cfg.Workers == 0 {
			if err := r.visit(ctx, child, z); err != nil {
				return err
			}
			continue
		}
		r.pool.Submit(ctx, child, func(ctx context.Context) error {
			return r.visit(ctx, child, z)
		})
	}

	if err := r.emit(ctx, z); err != nil {
		r.fail(path, err)
		return err
	}
	r.zones.Add(1)
	metrics.ObserveZone("ok")
	r.logger.Debug("zone done", zap.String("zone", z.ID), zap.String("path", path))
	return nil
}

func (r *run) fail(path string, err error) {
	r.failed.Add(1)
	metrics.ObserveZone("failed")
	r.logger.Error("zone failed", zap.String("path", path), zap.Error(err))
}

// discover fetches the zone page, installs the API token and parses the
// embedded settings.
func (r *run) discover(ctx context.Context, path string, parent *zone.Zone) (*zone.Zone, error) {
	pageURL := r.cfg.BaseURL + path
	r.logger.Info("loading zone", zap.String("url", pageURL))

	html, err := r.deps.Session.Fetch(ctx, pageURL, nil, r.cfg.CacheAssets)
	if err != nil {
		return nil, fmt.Errorf("fetch zone page: %w", err)
	}
	r.refreshAuth(pageURL)

	cfg, err := zone.ExtractConfig(html)
	if err != nil {
		return nil, fmt.Errorf("zone page %s: %w", path, err)
	}
	own, err := zone.OwnPath(pageURL, path)
	if err != nil {
		return nil, err
	}
	return zone.New(cfg, own, parent), nil
}

func (r *run) refreshAuth(pageURL string) {
	cookie, ok := r.deps.Session.Cookie(pageURL, auth.SessionCookie)
	if !ok {
		r.logger.Warn("session cookie missing, forecast API calls may be refused",
			zap.String("cookie", auth.SessionCookie))
		return
	}
	r.deps.Session.SetAuth(auth.TokenFromSession(cookie))
}
