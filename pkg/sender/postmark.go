package sender

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

// Config holds Postmark transport configuration.
// Tokens are optional so development environments can run on the DevSender.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	ReplyToEmail         string `env:"REPLY_TO_EMAIL,required"`
}

// Postmark API error codes that map to distinct retry classes.
// 405 is returned when the account has no sending credits left;
// 429 mirrors the HTTP status Postmark uses for request throttling.
const (
	postmarkCodeNoCredits   = 405
	postmarkCodeRateLimited = 429
)

type postmarkSender struct {
	client *postmark.Client
	config Config
}

// NewPostmarkSender creates a Postmark-backed sender.
// All config fields are required at runtime so misconfiguration surfaces
// at startup instead of on the first send.
func NewPostmarkSender(cfg Config) (Sender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if cfg.SenderEmail == "" || !emailRegex.MatchString(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if cfg.ReplyToEmail == "" || !emailRegex.MatchString(cfg.ReplyToEmail) {
		return nil, fmt.Errorf("%w: ReplyToEmail must be a valid email address", ErrInvalidConfig)
	}

	return &postmarkSender{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}, nil
}

// Send implements Sender on Postmark's transactional API.
// Provider errors are wrapped with the sentinel matching their retry class
// so the caller's backoff policy never needs provider knowledge.
func (s *postmarkSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:       s.config.SenderEmail,
		ReplyTo:    s.config.ReplyToEmail,
		To:         msg.To,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		HTMLBody:   msg.BodyHTML,
		TextBody:   msg.Preview,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		cause := fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message)
		switch resp.ErrorCode {
		case postmarkCodeNoCredits:
			return errors.Join(ErrQuotaExhausted, cause)
		case postmarkCodeRateLimited:
			return errors.Join(ErrRateLimited, cause)
		default:
			return errors.Join(ErrSendFailed, cause)
		}
	}
	return nil
}
