package httpserver_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/legiswatch/notify/pkg/httpserver"
)

func TestHealthCheckHandlerLiveness(t *testing.T) {
	t.Parallel()

	h := httpserver.HealthCheckHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ALIVE", rec.Body.String())
}

func TestHealthCheckHandlerReadyAllPass(t *testing.T) {
	t.Parallel()

	ok := func(context.Context) error { return nil }
	h := httpserver.HealthCheckHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), ok, ok)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "READY", rec.Body.String())
}

func TestHealthCheckHandlerReadyFailure(t *testing.T) {
	t.Parallel()

	ok := func(context.Context) error { return nil }
	bad := func(context.Context) error { return errors.New("pool exhausted") }
	h := httpserver.HealthCheckHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), ok, bad)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "NOT_READY", rec.Body.String())
}
