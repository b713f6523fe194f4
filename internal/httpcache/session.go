// Package httpcache memoizes GET responses for the duration of a crawl run and
// across runs, keyed by canonical URL.
package httpcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/JakeFAU/meteo-crawler/internal/metrics"
)

// FileName is the persisted asset table inside the cache directory.
const FileName = "assets.gob.zst"

// Transport performs live requests and exposes cookies set by the origin.
// *collyfetcher.Fetcher satisfies it.
type Transport interface {
	Get(ctx context.Context, rawURL string, header http.Header) ([]byte, error)
	Cookie(rawURL, name string) (string, bool)
}

// Options configures a Session.
type Options struct {
	// Enabled turns on lookups and persistence. A disabled session still
	// fetches live and counts misses.
	Enabled   bool
	Fs        afero.Fs
	Dir       string
	Transport Transport
	Logger    *zap.Logger
}

// Session is the shared asset cache of a crawl run. It is safe for concurrent use.
type Session struct {
	enabled   bool
	fs        afero.Fs
	path      string
	transport Transport
	logger    *zap.Logger

	mu     sync.Mutex
	table  map[string]string
	hits   int
	misses int

	ctxMu sync.Mutex
	refs  int

	authMu sync.RWMutex
	token  string
}

// New builds a Session. It is not loaded until Open.
func New(opts Options) *Session {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		enabled:   opts.Enabled,
		fs:        fs,
		path:      filepath.Join(opts.Dir, FileName),
		transport: opts.Transport,
		logger:    logger.Named("httpcache"),
		table:     make(map[string]string),
	}
}

// Open enters the session. The outermost Open loads the persisted table.
func (s *Session) Open() error {
	s.ctxMu.Lock()
	defer s.ctxMu.Unlock()

	s.refs++
	if s.refs > 1 || !s.enabled {
		return nil
	}
	table, err := load(s.fs, s.path)
	if err != nil {
		if errors.Is(err, errCorrupt) {
			s.logger.Warn("discarding unreadable asset cache", zap.String("path", s.path), zap.Error(err))
			return nil
		}
		s.refs--
		return fmt.Errorf("open asset cache: %w", err)
	}
	s.mu.Lock()
	for k, v := range table {
		if _, ok := s.table[k]; !ok {
			s.table[k] = v
		}
	}
	size := len(s.table)
	s.mu.Unlock()
	s.logger.Debug("asset cache loaded", zap.String("path", s.path), zap.Int("entries", size))
	return nil
}

// Close leaves the session. The outermost Close persists the table and logs
// cumulative hit and miss counts.
func (s *Session) Close() error {
	s.ctxMu.Lock()
	defer s.ctxMu.Unlock()

	if s.refs == 0 {
		return errors.New("close asset cache: session not open")
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}

	s.mu.Lock()
	snapshot := make(map[string]string, len(s.table))
	for k, v := range s.table {
		snapshot[k] = v
	}
	hits, misses := s.hits, s.misses
	s.mu.Unlock()

	s.logger.Info("asset cache closed", zap.Int("hits", hits), zap.Int("misses", misses))
	if !s.enabled {
		return nil
	}
	if err := save(s.fs, s.path, snapshot); err != nil {
		return fmt.Errorf("persist asset cache: %w", err)
	}
	return nil
}

// Scope runs fn between Open and Close. The error of fn is always returned,
// joined with any close error.
func (s *Session) Scope(fn func() error) (err error) {
	if err := s.Open(); err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.Close())
	}()
	return fn()
}

// SetAuth installs the bearer token sent with every live request.
func (s *Session) SetAuth(token string) {
	s.authMu.Lock()
	s.token = token
	s.authMu.Unlock()
}

// Auth returns the current bearer token and whether one is set.
func (s *Session) Auth() (string, bool) {
	s.authMu.RLock()
	defer s.authMu.RUnlock()
	return s.token, s.token != ""
}

// Cookie reads a cookie the origin of rawURL has set on the transport.
func (s *Session) Cookie(rawURL, name string) (string, bool) {
	return s.transport.Cookie(rawURL, name)
}

// Stats returns the cumulative hit and miss counts.
func (s *Session) Stats() (hits, misses int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, s.misses
}

// Fetch returns the body of rawURL with params. A memoized body is returned
// only when caching is enabled, useCache is set and an auth token exists;
// otherwise the URL is fetched live and the result memoized.
func (s *Session) Fetch(ctx context.Context, rawURL string, params url.Values, useCache bool) (string, error) {
	key := CanonicalURL(rawURL, params)
	token, authed := s.Auth()

	if s.enabled && useCache && authed {
		s.mu.Lock()
		body, ok := s.table[key]
		if ok {
			s.hits++
		}
		s.mu.Unlock()
		if ok {
			metrics.ObserveCacheLookup(metrics.CacheHit)
			return body, nil
		}
	}

	header := http.Header{}
	if authed {
		header.Set("Authorization", "Bearer "+token)
	}
	raw, err := s.transport.Get(ctx, key, header)
	if err != nil {
		return "", fmt.Errorf("fetch asset: %w", err)
	}
	body := string(raw)

	s.mu.Lock()
	s.table[key] = body
	s.misses++
	s.mu.Unlock()
	metrics.ObserveCacheLookup(metrics.CacheMiss)
	return body, nil
}

// CanonicalURL appends params to rawURL in sorted key order, so that two
// requests with the same parameters map to the same entry.
func CanonicalURL(rawURL string, params url.Values) string {
	if len(params) == 0 {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + params.Encode()
}
