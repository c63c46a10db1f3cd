package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/roomgate/roomgate/internal/core"
	"github.com/roomgate/roomgate/internal/core/ratelimit"
	"github.com/roomgate/roomgate/internal/metrics"
)

// Rate limit response headers
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRateLimitDegraded  = "X-RateLimit-Degraded"
	HeaderRetryAfter         = "Retry-After"
)

// ErrorResponder writes an error response for err.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

// Checker admits requests per client and category.
type Checker interface {
	Check(ctx context.Context, clientID string, category core.Category) (core.Decision, error)
}

// Admission gates handlers behind a Checker. Every response of a gated
// route carries the rate limit headers, admitted or not.
type Admission struct {
	Checker Checker
	Respond ErrorResponder
	Clock   func() time.Time
	Clients ratelimit.Resolver

	// degradedLog throttles store failure warnings to one per interval.
	degradedLog rate.Sometimes
}

// NewAdmission returns an Admission logging store degradation at most once
// per logEvery.
func NewAdmission(checker Checker, respond ErrorResponder, logEvery time.Duration) *Admission {
	if logEvery <= 0 {
		logEvery = 10 * time.Second
	}
	return &Admission{
		Checker:     checker,
		Respond:     respond,
		Clients:     ratelimit.Resolver{TrustedHops: ratelimit.DefaultTrustedHops},
		degradedLog: rate.Sometimes{First: 1, Interval: logEvery},
	}
}

// Limit returns middleware enforcing category.
func (a *Admission) Limit(category core.Category) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil || a.Checker == nil {
				next.ServeHTTP(w, r)
				return
			}

			clientID := a.Clients.ClientID(r)
			decision, err := a.Checker.Check(r.Context(), clientID, category)
			if err != nil {
				a.logDegraded(r, category, clientID, err)
			}

			writeRateLimitHeaders(w, decision)
			metrics.RecordRateLimitDecision(string(category), decision.Allowed)

			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			if decision.Degraded {
				envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "Rate limiting is unavailable").
					WithCorrelationID(GetRequestID(r.Context()))
				a.respond(w, r, envelope)
				return
			}

			w.Header().Set(HeaderRetryAfter, strconv.Itoa(ratelimit.RetryAfterSeconds(decision.ResetAt, a.now())))
			a.respond(w, r, &core.RateLimitError{Category: category, Decision: decision})
		})
	}
}

func (a *Admission) logDegraded(r *http.Request, category core.Category, clientID string, err error) {
	metrics.RecordRateLimitDegraded(string(category))
	a.degradedLog.Do(func() {
		logger := RequestLogger(r.Context())
		if logger == nil {
			return
		}
		logger.Warn("Rate limit store unavailable; admission degraded",
			zap.String("category", string(category)),
			zap.String("client_id", clientID),
			zap.Error(err))
	})
}

func (a *Admission) respond(w http.ResponseWriter, r *http.Request, err error) {
	if a.Respond != nil {
		a.Respond(w, r, err)
		return
	}

	status := http.StatusTooManyRequests
	envelope, ok := err.(*errors.ErrorEnvelope)
	if ok {
		status = http.StatusServiceUnavailable
	} else {
		envelope = errors.NewErrorEnvelope("RATE_LIMITED", "Too many requests").
			WithCorrelationID(GetRequestID(r.Context()))
	}
	writeErrorResponse(w, envelope, status)
}

func (a *Admission) now() time.Time {
	if a.Clock != nil {
		return a.Clock()
	}
	return time.Now().UTC()
}

func writeRateLimitHeaders(w http.ResponseWriter, decision core.Decision) {
	h := w.Header()
	h.Set(HeaderRateLimitLimit, strconv.Itoa(decision.Limit))
	h.Set(HeaderRateLimitRemaining, strconv.Itoa(decision.Remaining))
	h.Set(HeaderRateLimitReset, strconv.FormatInt(decision.ResetAt.Unix(), 10))
	if decision.Degraded {
		h.Set(HeaderRateLimitDegraded, "true")
	}
}
