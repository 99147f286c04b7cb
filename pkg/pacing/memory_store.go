package pacing

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with in-process fixed windows.
// Suitable for tests and single-node deployments; use RedisStore when
// several dispatch invocations must share one limit.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	startedAt time.Time
	used      int
}

// NewMemoryStore creates an empty in-memory token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// ConsumeToken implements Store.
func (s *MemoryStore) ConsumeToken(ctx context.Context, key string, cfg Config) (bool, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return false, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || now.Sub(w.startedAt) >= cfg.Window {
		w = &window{startedAt: now}
		s.windows[key] = w
	}

	if w.used >= cfg.Limit {
		retryAfter := cfg.Window - now.Sub(w.startedAt)
		return false, retryAfter, nil
	}

	w.used++
	return true, 0, nil
}
