package dispatch

import (
	"log/slog"
	"time"

	"github.com/legiswatch/notify/pkg/backoff"
	"github.com/legiswatch/notify/pkg/pacing"
	"github.com/legiswatch/notify/pkg/prefs"
	"github.com/legiswatch/notify/pkg/render"
)

// Option configures dispatcher construction.
type Option func(*options)

type options struct {
	cfg      Config
	clock    func() time.Time
	logger   *slog.Logger
	resolver *prefs.Resolver
	renderer *render.Renderer
	pacer    *pacing.Pacer
	policy   backoff.Policy
}

// WithConfig overrides the engine tunables.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithClock injects the time source. Tests pin it for determinism.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithResolver sets the preference resolver.
func WithResolver(r *prefs.Resolver) Option {
	return func(o *options) {
		if r != nil {
			o.resolver = r
		}
	}
}

// WithRenderer sets the content renderer.
func WithRenderer(r *render.Renderer) Option {
	return func(o *options) {
		if r != nil {
			o.renderer = r
		}
	}
}

// WithPacer sets the send pacer. Without one, sends are unpaced, which
// is only acceptable in tests.
func WithPacer(p *pacing.Pacer) Option {
	return func(o *options) {
		if p != nil {
			o.pacer = p
		}
	}
}

// WithBackoffPolicy overrides the retry schedule.
func WithBackoffPolicy(p backoff.Policy) Option {
	return func(o *options) { o.policy = p }
}
