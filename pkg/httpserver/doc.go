// Package httpserver wraps net/http with graceful shutdown, functional
// options, and health-check handlers.
//
// Run blocks until the context is cancelled or an interrupt/TERM signal
// arrives, then shuts down with a configurable deadline. Start errors
// wrap ErrStart, shutdown errors wrap ErrShutdown; check with errors.Is.
package httpserver
