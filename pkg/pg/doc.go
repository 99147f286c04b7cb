// Package pg manages PostgreSQL connectivity: a retrying pgxpool
// connect, a health check closure for readiness probes, and goose
// migrations routed through the application logger.
package pg
