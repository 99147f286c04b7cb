// Package dispatch is the event-to-notification engine.
//
// A dispatch run claims due events from the store with an atomic
// conditional update, fans each event out across subscribers through the
// preference resolver, and routes every match either to an immediate
// paced send or to a queued delivery on the subscriber's digest anchor.
// After the batch, touched anchors are flushed: due digests are sent as
// one aggregated message and their queued deliveries closed in bulk.
//
// The engine owns no singletons. Storage, sender, pacer, resolver, clock,
// and logger are injected, which keeps concurrency properties (exactly
// one claim per event, at most one delivery per (event, anchor) pair)
// testable against the in-memory storage.
//
// # Components
//
//   - Registry: idempotent get-or-create of subscription anchors
//   - Recorder: opens and closes delivery records
//   - Dispatcher: claims events and runs the subscriber fan-out
//   - Flusher: walks touched anchors and sends due digests
//
// Storage access goes through small per-concern interfaces; MemoryStorage
// implements them for tests and PGStorage for production Postgres.
package dispatch
