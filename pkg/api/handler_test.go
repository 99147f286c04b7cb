package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legiswatch/notify/pkg/api"
	"github.com/legiswatch/notify/pkg/dispatch"
)

type fakeDispatcher struct {
	gotLimit    int
	gotOverride *uuid.UUID
	result      *dispatch.BatchResult
	err         error
}

func (f *fakeDispatcher) RunDispatch(ctx context.Context, limit int, override *uuid.UUID) (*dispatch.BatchResult, error) {
	f.gotLimit = limit
	f.gotOverride = override
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &dispatch.BatchResult{}, nil
}

func newTestRouter(t *testing.T, d api.Dispatcher, opts ...api.Option) http.Handler {
	t.Helper()
	opts = append([]api.Option{api.WithSharedSecret("s3cret")}, opts...)
	h, err := api.NewRouter(d, opts...)
	require.NoError(t, err)
	return h
}

func TestNewRouterValidation(t *testing.T) {
	t.Parallel()

	_, err := api.NewRouter(nil, api.WithSharedSecret("x"))
	require.ErrorIs(t, err, api.ErrDispatcherNil)

	_, err = api.NewRouter(&fakeDispatcher{})
	require.ErrorIs(t, err, api.ErrNoAuthMethod)
}

func TestDispatchRunRequiresAuth(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, &fakeDispatcher{})

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "wrong token", header: "Bearer nope"},
		{name: "not bearer", header: "Basic s3cret"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, "/dispatch/run", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestDispatchRunBearerToken(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{result: &dispatch.BatchResult{Fetched: 3, Claimed: 2}}
	h := newTestRouter(t, d)

	req := httptest.NewRequest(http.MethodPost, "/dispatch/run?limit=10", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, d.gotLimit)
	assert.Nil(t, d.gotOverride)

	var body dispatch.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Fetched)
	assert.Equal(t, 2, body.Claimed)
}

func TestDispatchRunOperatorSession(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{}
	h, err := api.NewRouter(d, api.WithSessionChecker(func(r *http.Request) bool {
		c, err := r.Cookie("op_session")
		return err == nil && c.Value == "valid"
	}))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/dispatch/run", nil)
	req.AddCookie(&http.Cookie{Name: "op_session", Value: "valid"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/dispatch/run", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDispatchRunEventOverride(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{}
	h := newTestRouter(t, d)

	id := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/dispatch/run?event_id="+id.String(), nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, d.gotOverride)
	assert.Equal(t, id, *d.gotOverride)
}

func TestDispatchRunBadParams(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, &fakeDispatcher{})

	for _, target := range []string{
		"/dispatch/run?limit=abc",
		"/dispatch/run?limit=-1",
		"/dispatch/run?event_id=not-a-uuid",
	} {
		req := httptest.NewRequest(http.MethodPost, target, nil)
		req.Header.Set("Authorization", "Bearer s3cret")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestDispatchRunErrorMapping(t *testing.T) {
	t.Parallel()

	notFound := &fakeDispatcher{err: dispatch.ErrEventNotFound}
	h := newTestRouter(t, notFound)

	req := httptest.NewRequest(http.MethodPost, "/dispatch/run", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	broken := &fakeDispatcher{err: dispatch.ErrStoreUnavailable}
	h = newTestRouter(t, broken)

	req = httptest.NewRequest(http.MethodPost, "/dispatch/run", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthEndpointsUnauthenticated(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, &fakeDispatcher{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
