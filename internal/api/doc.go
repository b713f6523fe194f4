// Package api hosts the HTTP server of the serve command. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /status for the latest crawl run.
//   - everything else is served from the generated site directory.
package api
