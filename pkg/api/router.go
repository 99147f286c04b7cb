package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/legiswatch/notify/pkg/dispatch"
	"github.com/legiswatch/notify/pkg/httpserver"
)

// Dispatcher is the surface the API needs from the dispatch engine.
type Dispatcher interface {
	RunDispatch(ctx context.Context, limit int, override *uuid.UUID) (*dispatch.BatchResult, error)
}

type router struct {
	dispatcher   Dispatcher
	sharedSecret string
	sessionCheck SessionChecker
	log          *slog.Logger
	readyChecks  []func(context.Context) error
}

// Option configures the router.
type Option func(*router)

// WithSharedSecret enables bearer token authentication.
func WithSharedSecret(secret string) Option {
	return func(rt *router) { rt.sharedSecret = secret }
}

// WithSessionChecker enables operator session authentication.
func WithSessionChecker(check SessionChecker) Option {
	return func(rt *router) { rt.sessionCheck = check }
}

// WithLogger supplies a logger for request errors.
func WithLogger(log *slog.Logger) Option {
	return func(rt *router) {
		if log != nil {
			rt.log = log
		}
	}
}

// WithReadyChecks registers dependency checks for GET /readyz.
func WithReadyChecks(checks ...func(context.Context) error) Option {
	return func(rt *router) { rt.readyChecks = append(rt.readyChecks, checks...) }
}

// NewRouter builds the HTTP handler for the dispatch API.
func NewRouter(d Dispatcher, opts ...Option) (http.Handler, error) {
	if d == nil {
		return nil, ErrDispatcherNil
	}

	rt := &router{
		dispatcher: d,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.sharedSecret == "" && rt.sessionCheck == nil {
		return nil, ErrNoAuthMethod
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/healthz", httpserver.HealthCheckHandler(rt.log))
	r.Get("/readyz", httpserver.HealthCheckHandler(rt.log, rt.readyChecks...))

	r.Group(func(r chi.Router) {
		r.Use(rt.requireAuth)
		r.Post("/dispatch/run", rt.handleDispatchRun)
	})

	return r, nil
}
