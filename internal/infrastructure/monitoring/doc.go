// Package monitoring provides Prometheus metrics for HTTP traffic,
// virtual filesystem operations, journal flushes and WebSocket streams,
// plus the Gin middleware that records per-request metrics.
package monitoring
