package pacing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a shared Redis instance so concurrent
// dispatch invocations draw from one global window.
//
// Each window is a counter keyed by (key, window index) with a TTL of
// two windows; INCR on the first hit creates the counter, so the whole
// operation stays atomic per call without scripting.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisStore creates a Redis-backed token store.
func NewRedisStore(client redis.UniversalClient) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: redis client is required", ErrInvalidConfig)
	}
	return &RedisStore{client: client, now: time.Now}, nil
}

// ConsumeToken implements Store.
func (s *RedisStore) ConsumeToken(ctx context.Context, key string, cfg Config) (bool, time.Duration, error) {
	now := s.now()
	idx := now.UnixNano() / int64(cfg.Window)
	counterKey := fmt.Sprintf("pacing:%s:%d", key, idx)

	used, err := s.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return false, 0, errors.Join(ErrStoreUnavailable, err)
	}
	if used == 1 {
		// Best effort; an unexpired counter for a past window is never
		// read again because the index moved on.
		_ = s.client.Expire(ctx, counterKey, 2*cfg.Window).Err()
	}

	if used > int64(cfg.Limit) {
		windowStart := time.Unix(0, idx*int64(cfg.Window))
		retryAfter := cfg.Window - now.Sub(windowStart)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter, nil
	}
	return true, 0, nil
}
