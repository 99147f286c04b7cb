package sender

import (
	"context"
	"log/slog"
)

// DevSender implements Sender for local development and tests.
// It logs the message instead of delivering it.
type DevSender struct {
	log *slog.Logger
}

// NewDevSender creates a sender that logs instead of sending.
// A nil logger falls back to slog.Default.
func NewDevSender(log *slog.Logger) *DevSender {
	if log == nil {
		log = slog.Default()
	}
	return &DevSender{log: log}
}

// Send validates the message and logs it at info level.
func (d *DevSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	d.log.InfoContext(ctx, "dev sender: message delivered to log",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("preview", msg.Preview),
		slog.Bool("priority", msg.Priority),
		slog.String("tag", msg.Tag))

	return nil
}
