package sender

import "errors"

var (
	// ErrInvalidConfig indicates missing or malformed sender configuration.
	ErrInvalidConfig = errors.New("sender: invalid config")

	// ErrInvalidMessage indicates a message that cannot be sent as-is.
	ErrInvalidMessage = errors.New("sender: invalid message")

	// ErrSendFailed wraps any provider-side delivery failure.
	ErrSendFailed = errors.New("sender: failed to send notification")

	// ErrRateLimited indicates the provider pushed back on request volume.
	ErrRateLimited = errors.New("sender: provider rate limit exceeded")

	// ErrQuotaExhausted indicates the sending quota is spent.
	ErrQuotaExhausted = errors.New("sender: provider quota exhausted")
)
