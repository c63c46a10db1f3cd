package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/roomgate/roomgate/internal/observability"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type requestContextKey string

const (
	RequestIDContextKey requestContextKey = "request_id"
	loggerContextKey    requestContextKey = "request_logger"
)

// validRequestID bounds caller-supplied ids to short opaque tokens.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._:/+-]{1,128}$`)

// RequestID assigns every request an id and a request-scoped server logger.
// A well-formed X-Request-ID from the caller (or chi's id) is reused.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		if requestID == "" {
			requestID = r.Header.Get(RequestIDHeader)
		}
		if !validRequestID.MatchString(requestID) {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
		if observability.ServerLogger != nil {
			logger := observability.ServerLogger.WithFields(map[string]any{
				"request_id": requestID,
				"method":     r.Method,
				"path":       r.URL.Path,
			})
			ctx = context.WithValue(ctx, loggerContextKey, logger)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the id assigned by RequestID, falling back to chi's.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDContextKey).(string); ok {
		return requestID
	}
	return middleware.GetReqID(ctx)
}

// RequestLogger returns the request-scoped logger, or the server logger when
// the request did not pass through RequestID. It is nil when no server
// logger is installed.
func RequestLogger(ctx context.Context) *logging.Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*logging.Logger); ok {
		return logger
	}
	return observability.ServerLogger
}
