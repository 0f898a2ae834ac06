// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Run submission and draining
//   - Node commands (pause, resume, restart, cancel)
//   - Status and graph queries
//   - Health checks
//   - Prometheus metrics
package http
