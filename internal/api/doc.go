// Package api hosts the HTTP server, middleware, and REST handlers used by
// serve mode. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/runs?mode=auto|hourly|daily to trigger a pass by hand.
//   - GET /v1/members for the tracked roster in summary order.
package api
