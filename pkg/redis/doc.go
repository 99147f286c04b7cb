// Package redis manages Redis connectivity for the shared send-pacing
// store: a retrying connect from a URL and a health check closure for
// readiness probes.
package redis
