package logger

import (
	"io"
	"log/slog"
	"os"
)

// Format selects the log output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config holds logger settings loaded from the environment.
type Config struct {
	Level   string `env:"LOG_LEVEL" envDefault:"info"`   // debug, info, warn, error
	Format  Format `env:"LOG_FORMAT" envDefault:"json"`  // json or text
	Service string `env:"LOG_SERVICE" envDefault:"notifyd"`
}

// Option configures logger creation.
type Option func(*settings)

type settings struct {
	level   slog.Level
	format  Format
	output  io.Writer
	service string
}

// WithLevel sets the minimum level.
func WithLevel(l slog.Level) Option {
	return func(s *settings) { s.level = l }
}

// WithFormat sets the output encoding.
func WithFormat(f Format) Option {
	return func(s *settings) {
		if f == FormatJSON || f == FormatText {
			s.format = f
		}
	}
}

// WithOutput redirects log output; nil writers are ignored.
func WithOutput(w io.Writer) Option {
	return func(s *settings) {
		if w != nil {
			s.output = w
		}
	}
}

// WithService tags every record with the service name.
func WithService(name string) Option {
	return func(s *settings) { s.service = name }
}

// New creates a configured slog.Logger.
func New(opts ...Option) *slog.Logger {
	s := &settings{
		level:  slog.LevelInfo,
		format: FormatJSON,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}

	handlerOpts := &slog.HandlerOptions{Level: s.level}
	var handler slog.Handler
	if s.format == FormatText {
		handler = slog.NewTextHandler(s.output, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(s.output, handlerOpts)
	}
	if s.service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", s.service)})
	}
	return slog.New(handler)
}

// NewFromConfig builds a logger from environment configuration.
func NewFromConfig(cfg Config) *slog.Logger {
	opts := []Option{
		WithLevel(parseLevel(cfg.Level)),
		WithFormat(cfg.Format),
		WithService(cfg.Service),
	}
	return New(opts...)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Error is a convenience attr for error values.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
