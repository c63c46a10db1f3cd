package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomgate/roomgate/internal/observability"
)

func serveWithRequestID(t *testing.T, inbound string, next http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	if inbound != "" {
		req.Header.Set(RequestIDHeader, inbound)
	}
	rec := httptest.NewRecorder()
	RequestID(next).ServeHTTP(rec, req)
	return rec
}

func TestRequestIDReusesWellFormedInboundID(t *testing.T) {
	var seen string
	rec := serveWithRequestID(t, "edge-7f3a:0001", func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	})

	assert.Equal(t, "edge-7f3a:0001", seen)
	assert.Equal(t, "edge-7f3a:0001", rec.Header().Get(RequestIDHeader))
}

func TestRequestIDReplacesMalformedInboundID(t *testing.T) {
	for _, inbound := range []string{
		"abc\ninjected=1",
		"<script>",
		strings.Repeat("a", 129),
	} {
		var seen string
		rec := serveWithRequestID(t, inbound, func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		})

		_, err := uuid.Parse(seen)
		assert.NoError(t, err, inbound)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestLoggerScopedToRequest(t *testing.T) {
	original := observability.ServerLogger
	t.Cleanup(func() { observability.ServerLogger = original })

	observability.ServerLogger = nil
	serveWithRequestID(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Nil(t, RequestLogger(r.Context()))
	})

	observability.InitServerLogger(observability.ServerLoggerOptions{Service: "roomgate-test", Level: "error"})
	serveWithRequestID(t, "req-1", func(w http.ResponseWriter, r *http.Request) {
		logger := RequestLogger(r.Context())
		require.NotNil(t, logger)
		assert.NotSame(t, observability.ServerLogger, logger)
	})

	bare := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Same(t, observability.ServerLogger, RequestLogger(bare.Context()))
}

func TestRecoveryHidesPanicDetails(t *testing.T) {
	handler := RequestID(Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("room catalog nil map at 0xdeadbeef")
	})))

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	req.Header.Set(RequestIDHeader, "req-panic")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "deadbeef")
	assert.NotContains(t, rec.Body.String(), "goroutine")

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.Equal(t, "req-panic", body.Error.RequestID)
}
