// Package collyfetcher performs live GETs for the session cache using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/meteo-crawler/internal/metrics"
)

// Waiter paces outgoing requests. *ratelimit.Limiter satisfies it.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Limiter is optional; nil sends requests as fast as the pool allows.
	Limiter Waiter
}

// Fetcher issues GET requests through clones of one base collector. Clones
// share the base's HTTP backend, so cookies set by the origin are visible to
// every later request and to Cookie.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(0),
	)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.WithTransport(newHTTPTransport())
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	c.SetRequestTimeout(timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Get fetches rawURL with the given extra headers and returns the body.
// Non-2xx responses are errors carrying the URL and status.
func (f *Fetcher) Get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	if f.cfg.Limiter != nil {
		if err := f.cfg.Limiter.Wait(ctx, rawURL); err != nil {
			return nil, err
		}
	}

	var (
		body     []byte
		status   int
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	f.configureCollectorHooks(collector, header, &body, &status, &fetchErr)

	start := time.Now()
	if err := f.runCollector(ctx, collector, rawURL, &status, &fetchErr); err != nil {
		// body may still be written by an abandoned visit; do not read it.
		metrics.ObserveLiveFetch(rawURL, err, 0, time.Since(start))
		return nil, err
	}
	metrics.ObserveLiveFetch(rawURL, nil, len(body), time.Since(start))
	return body, nil
}

// Cookie returns the named cookie the origin of rawURL has set, if any.
func (f *Fetcher) Cookie(rawURL, name string) (string, bool) {
	for _, c := range f.baseCollector.Cookies(rawURL) {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	header http.Header,
	body *[]byte,
	status *int,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		copyHeaders(header, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		*status = r.StatusCode
		*body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			*status = r.StatusCode
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string, status *int, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("get %s: %w", rawURL, ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("get %s: status %d: %w", rawURL, *status, *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", rawURL, err)
		}
		return nil
	}
}

func copyHeaders(header http.Header, r *colly.Request) {
	for key, values := range header {
		r.Headers.Del(key)
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
