package sender

import (
	"context"
	"fmt"
	"regexp"
)

// Message is a fully rendered notification ready for delivery.
// Rendering happens upstream; transports never touch templates.
type Message struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	Preview  string `json:"preview,omitempty"` // Plain-text preview line
	Priority bool   `json:"priority,omitempty"`
	Tag      string `json:"tag,omitempty"`
}

// Sender delivers a rendered message to one recipient.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Validate checks the message holds the minimum a transport needs.
func (m Message) Validate() error {
	if m.To == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	}
	if !emailRegex.MatchString(m.To) {
		return fmt.Errorf("%w: recipient must be a valid email address", ErrInvalidMessage)
	}
	if m.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}
	if m.BodyHTML == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}
	return nil
}
