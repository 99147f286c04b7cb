package backoff

import (
	"errors"
	"strings"
	"time"

	"github.com/legiswatch/notify/pkg/sender"
)

// Class buckets a send failure for retry scheduling.
type Class int

const (
	// ClassGeneric covers everything without a more specific bucket.
	ClassGeneric Class = iota
	// ClassRateLimited means the provider pushed back; retry after a short cool-down.
	ClassRateLimited
	// ClassQuotaExhausted means the sending quota is spent; retrying soon cannot succeed.
	ClassQuotaExhausted
)

func (c Class) String() string {
	switch c {
	case ClassRateLimited:
		return "rate_limited"
	case ClassQuotaExhausted:
		return "quota_exhausted"
	default:
		return "generic"
	}
}

// Classify buckets err by sentinel match first, then by provider error text.
// A nil error classifies as generic; callers are expected to only classify
// actual failures.
func Classify(err error) Class {
	if err == nil {
		return ClassGeneric
	}
	if errors.Is(err, sender.ErrQuotaExhausted) {
		return ClassQuotaExhausted
	}
	if errors.Is(err, sender.ErrRateLimited) {
		return ClassRateLimited
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota") || strings.Contains(msg, "not enough credits"):
		return ClassQuotaExhausted
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "429"):
		return ClassRateLimited
	default:
		return ClassGeneric
	}
}

// Policy maps attempt counts and failure classes to the next attempt time.
type Policy struct {
	// Schedule holds generic-class delays indexed by attempt count.
	// Attempts beyond the last entry reuse it, capping the backoff.
	Schedule []time.Duration

	// RateLimitDelay applies to rate-limited failures regardless of attempts.
	RateLimitDelay time.Duration

	// QuotaDelay applies to quota-exhausted failures regardless of attempts.
	QuotaDelay time.Duration
}

// DefaultPolicy returns the production retry schedule.
func DefaultPolicy() Policy {
	return Policy{
		Schedule: []time.Duration{
			2 * time.Minute,
			5 * time.Minute,
			10 * time.Minute,
			20 * time.Minute,
			40 * time.Minute,
			60 * time.Minute,
		},
		RateLimitDelay: 15 * time.Minute,
		QuotaDelay:     12 * time.Hour,
	}
}

// NextAttempt returns the time the event becomes claimable again.
// attempts is the number of claims already made, so the first failure
// (attempts == 1) lands on the first schedule entry.
func (p Policy) NextAttempt(attempts int, class Class, now time.Time) time.Time {
	switch class {
	case ClassRateLimited:
		return now.Add(p.RateLimitDelay)
	case ClassQuotaExhausted:
		return now.Add(p.QuotaDelay)
	}

	if len(p.Schedule) == 0 {
		return now
	}
	idx := attempts - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.Schedule) {
		idx = len(p.Schedule) - 1
	}
	return now.Add(p.Schedule[idx])
}
