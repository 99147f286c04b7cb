// Package pacing bounds the rate of outbound sends.
//
// The dispatch loop serializes sends to respect the provider's rate
// limit; instead of ad hoc sleeps scattered through the loop, pacing is a
// named component the dispatcher waits on before every send attempt.
//
// A Pacer consumes tokens from a fixed-window Store. The MemoryStore
// serves tests and single-node deployments; the RedisStore shares one
// window across concurrent dispatch invocations so several runs together
// still respect one global provider limit.
package pacing
