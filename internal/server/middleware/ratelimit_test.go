package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomgate/roomgate/internal/core"
	"github.com/roomgate/roomgate/internal/core/counter"
	"github.com/roomgate/roomgate/internal/core/ratelimit"
)

type downStore struct{}

func (downStore) Increment(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
}

func (downStore) Get(context.Context, string) (int64, error) { return 0, errors.New("down") }

func (downStore) Delete(context.Context, string) error { return errors.New("down") }

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func newAdmission(store counter.Store, policy core.FailurePolicy, c *clock) *Admission {
	limiter := &ratelimit.Limiter{
		Store:        store,
		Categories:   ratelimit.DefaultCategories,
		OnStoreError: policy,
		Clock:        c.Now,
	}
	admission := NewAdmission(limiter, nil, time.Minute)
	admission.Clock = c.Now
	return admission
}

func TestAdmissionDeniesSixthAuthRequest(t *testing.T) {
	windowStart := time.Unix(1735689600, 0).UTC()
	c := &clock{now: windowStart}
	handler := newAdmission(counter.NewMemoryStore(), core.FailOpen, c).Limit(core.CategoryAuth)(okHandler())

	var rec *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		c.now = windowStart.Add(time.Duration(i*2) * time.Second)
		req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
		req.RemoteAddr = "1.2.3.4:50000"
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if i < 5 {
			require.Equal(t, http.StatusNoContent, rec.Code, "request %d", i+1)
			assert.Equal(t, strconv.Itoa(4-i), rec.Header().Get(HeaderRateLimitRemaining))
		}
	}

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "50", rec.Header().Get(HeaderRetryAfter))
	assert.Equal(t, "5", rec.Header().Get(HeaderRateLimitLimit))
	assert.Equal(t, "0", rec.Header().Get(HeaderRateLimitRemaining))
	assert.Equal(t, "1735689660", rec.Header().Get(HeaderRateLimitReset))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMITED", body.Error.Code)
}

func TestAdmissionClientsAreIndependent(t *testing.T) {
	c := &clock{now: time.Unix(1735689600, 0).UTC()}
	handler := newAdmission(counter.NewMemoryStore(), core.FailOpen, c).Limit(core.CategoryAuth)(okHandler())

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
		req.RemoteAddr = addr + ":1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusNoContent, send("1.2.3.4"))
	}
	assert.Equal(t, http.StatusTooManyRequests, send("1.2.3.4"))
	assert.Equal(t, http.StatusNoContent, send("5.6.7.8"))

	c.now = c.now.Add(time.Minute)
	assert.Equal(t, http.StatusNoContent, send("1.2.3.4"))
}

func TestAdmissionIgnoresSpoofedForwardedPrefix(t *testing.T) {
	c := &clock{now: time.Unix(1735689600, 0).UTC()}
	admission := newAdmission(counter.NewMemoryStore(), core.FailOpen, c)
	handler := admission.Limit(core.CategoryAuth)(okHandler())

	send := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
		req.RemoteAddr = "10.0.0.2:443"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusNoContent, send(strconv.Itoa(i)+".1.1.1, 203.0.113.9"))
	}
	assert.Equal(t, http.StatusTooManyRequests, send("99.1.1.1, 203.0.113.9"))

	// without trusted proxies the peer address is the identity
	admission.Clients = ratelimit.Resolver{}
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusNoContent, send("198.51.100."+strconv.Itoa(i)))
	}
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.99"))
}

func TestAdmissionDegradedFailOpen(t *testing.T) {
	collector := setupTelemetry(t)
	c := &clock{now: time.Unix(1735689600, 0).UTC()}
	handler := newAdmission(downStore{}, core.FailOpen, c).Limit(core.CategoryToken)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/rooms/token", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "true", rec.Header().Get(HeaderRateLimitDegraded))
	assert.Equal(t, "20", rec.Header().Get(HeaderRateLimitRemaining))
	assert.Greater(t, collector.CountMetricsByName("ratelimit_degraded_total"), 0)
}

func TestAdmissionDegradedFailClosed(t *testing.T) {
	c := &clock{now: time.Unix(1735689600, 0).UTC()}
	handler := newAdmission(downStore{}, core.FailClosed, c).Limit(core.CategoryToken)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/rooms/token", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderRetryAfter))
	assert.NotContains(t, rec.Body.String(), "6379")
}

func TestAdmissionUsesResponder(t *testing.T) {
	c := &clock{now: time.Unix(1735689600, 0).UTC()}
	var got error
	admission := newAdmission(counter.NewMemoryStore(), core.FailOpen, c)
	admission.Respond = func(w http.ResponseWriter, r *http.Request, err error) {
		got = err
		w.WriteHeader(http.StatusTeapot)
	}
	handler := admission.Limit(core.CategoryAuth)(okHandler())

	for i := 0; i < 6; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}

	var rateErr *core.RateLimitError
	require.ErrorAs(t, got, &rateErr)
	assert.Equal(t, core.CategoryAuth, rateErr.Category)
	assert.Equal(t, 5, rateErr.Decision.Limit)
}
