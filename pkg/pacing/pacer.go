package pacing

import (
	"context"
	"fmt"
	"time"
)

// Config bounds send throughput as a fixed window.
type Config struct {
	Limit  int           `env:"PACING_SEND_LIMIT" envDefault:"10"`  // Sends allowed per window
	Window time.Duration `env:"PACING_SEND_WINDOW" envDefault:"1s"` // Window width
}

func (c Config) validate() error {
	if c.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidConfig, c.Limit)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %v", ErrInvalidConfig, c.Window)
	}
	return nil
}

// Store tracks token consumption per key within fixed windows.
type Store interface {
	// ConsumeToken takes one token for key. When the window is exhausted
	// it returns allowed=false and how long until the window resets.
	ConsumeToken(ctx context.Context, key string, cfg Config) (allowed bool, retryAfter time.Duration, err error)
}

// Pacer gates send attempts on a shared token store.
type Pacer struct {
	store Store
	cfg   Config
	key   string

	// sleep is replaceable in tests to keep pacing deterministic.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer for the named limit key.
// All dispatch invocations sharing a provider must share the key.
func NewPacer(store Store, key string, cfg Config) (*Pacer, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if key == "" {
		return nil, fmt.Errorf("%w: key is required", ErrInvalidConfig)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Pacer{
		store: store,
		cfg:   cfg,
		key:   key,
		sleep: sleepCtx,
	}, nil
}

// Wait blocks until a send token is available or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	for {
		allowed, retryAfter, err := p.store.ConsumeToken(ctx, p.key, p.cfg)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
		if retryAfter <= 0 {
			retryAfter = p.cfg.Window
		}
		if err := p.sleep(ctx, retryAfter); err != nil {
			return err
		}
	}
}

// Pause sleeps for d, honoring ctx. The dispatcher uses it for the
// extra cool-down after a rate-limit-classified send failure.
func (p *Pacer) Pause(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
