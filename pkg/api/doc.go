// Package api exposes the dispatch engine over HTTP.
//
// POST /dispatch/run triggers a batch run. The caller authenticates
// with a bearer shared secret or, when a SessionChecker is configured,
// an operator session. Query parameters:
//
//	limit    - cap on events claimed this run (optional)
//	event_id - force-dispatch a single event regardless of status (optional)
//
// GET /healthz answers liveness; GET /readyz runs the configured
// dependency checks.
package api
