// Package backoff decides when a failed event becomes claimable again.
//
// It is split into two pure pieces: Classify, which buckets a send error
// into a failure class by inspecting sentinel errors and provider error
// text, and Policy, which maps (attempt count, class) to the next attempt
// timestamp. Generic failures follow a fixed minute schedule capped at its
// last entry; rate-limited and quota-exhausted failures use distinct flat
// delays because retrying on the generic schedule cannot succeed sooner.
//
// Both functions are free of I/O and clock access (the caller supplies
// now), so retry behaviour is unit-testable without any infrastructure.
package backoff
