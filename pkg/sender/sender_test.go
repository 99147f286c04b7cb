package sender_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legiswatch/notify/pkg/sender"
)

func validMessage() sender.Message {
	return sender.Message{
		To:       "sub@example.com",
		Subject:  "Bill HB-1042 was introduced",
		BodyHTML: "<html><body>hello</body></html>",
	}
}

func TestMessageValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, validMessage().Validate())

	tests := []struct {
		name   string
		mutate func(*sender.Message)
	}{
		{name: "missing recipient", mutate: func(m *sender.Message) { m.To = "" }},
		{name: "malformed recipient", mutate: func(m *sender.Message) { m.To = "not-an-email" }},
		{name: "missing subject", mutate: func(m *sender.Message) { m.Subject = "" }},
		{name: "missing body", mutate: func(m *sender.Message) { m.BodyHTML = "" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := validMessage()
			tt.mutate(&m)
			require.ErrorIs(t, m.Validate(), sender.ErrInvalidMessage)
		})
	}
}

func TestNewPostmarkSenderValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := sender.NewPostmarkSender(sender.Config{})
	require.ErrorIs(t, err, sender.ErrInvalidConfig)

	_, err = sender.NewPostmarkSender(sender.Config{
		PostmarkServerToken:  "server-token",
		PostmarkAccountToken: "account-token",
		SenderEmail:          "not-an-email",
		ReplyToEmail:         "reply@example.com",
	})
	require.ErrorIs(t, err, sender.ErrInvalidConfig)

	_, err = sender.NewPostmarkSender(sender.Config{
		PostmarkServerToken:  "server-token",
		PostmarkAccountToken: "account-token",
		SenderEmail:          "notify@example.com",
		ReplyToEmail:         "reply@example.com",
	})
	require.NoError(t, err)
}

func TestDevSenderAcceptsValidMessage(t *testing.T) {
	t.Parallel()

	d := sender.NewDevSender(nil)
	require.NoError(t, d.Send(context.Background(), validMessage()))
}

func TestDevSenderRejectsInvalidMessage(t *testing.T) {
	t.Parallel()

	d := sender.NewDevSender(nil)
	err := d.Send(context.Background(), sender.Message{})
	assert.ErrorIs(t, err, sender.ErrInvalidMessage)
}
