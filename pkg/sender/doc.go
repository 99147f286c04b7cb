// Package sender defines the outbound notification boundary of the
// dispatch engine and its concrete transports.
//
// The dispatcher only depends on the Sender interface: one fully rendered
// Message in, an error out. Two implementations are provided:
//
//   - PostmarkSender delivers through Postmark's transactional API and
//     translates provider error codes into the package's sentinel errors
//     (ErrRateLimited, ErrQuotaExhausted) so the backoff policy can
//     classify failures without knowing the provider.
//   - DevSender writes messages to the structured log instead of sending,
//     for local runs and tests.
//
// Sentinel errors are wrapped with errors.Join and checked with errors.Is.
package sender
