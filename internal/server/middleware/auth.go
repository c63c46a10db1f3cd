package middleware

import (
	"context"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/roomgate/roomgate/internal/core"
)

// Authenticator resolves the Authorization header into a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (core.Principal, error)
}

// BearerParser extracts the token from an Authorization header value.
type BearerParser func(header string) (string, error)

type principalContextKey struct{}

// WithPrincipal stores the authenticated caller in ctx.
func WithPrincipal(ctx context.Context, principal core.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFrom returns the authenticated caller, if any.
func PrincipalFrom(ctx context.Context) (core.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(core.Principal)
	return principal, ok
}

// Auth guards routes behind an Authenticator.
type Auth struct {
	Authenticator Authenticator
	ParseBearer   BearerParser
	Respond       ErrorResponder
}

// Require rejects requests without a valid bearer token. When skip reports
// true the request passes through unauthenticated.
func (a *Auth) Require(skip func(*http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip != nil && skip(r) {
				next.ServeHTTP(w, r)
				return
			}
			if a == nil || a.Authenticator == nil {
				a.fail(w, r, &core.ConfigError{Component: "identity provider"})
				return
			}

			header := r.Header.Get("Authorization")
			bearer := header
			if a.ParseBearer != nil {
				token, err := a.ParseBearer(header)
				if err != nil {
					a.fail(w, r, err)
					return
				}
				bearer = token
			}

			principal, err := a.Authenticator.Authenticate(r.Context(), bearer)
			if err != nil {
				if logger := RequestLogger(r.Context()); !core.IsAuth(err) && logger != nil {
					logger.Warn("Authentication failed", zap.Error(err))
				}
				a.fail(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func (a *Auth) fail(w http.ResponseWriter, r *http.Request, err error) {
	if a != nil && a.Respond != nil {
		a.Respond(w, r, err)
		return
	}

	code, status := "UNAUTHORIZED", http.StatusUnauthorized
	if core.IsConfig(err) {
		code, status = "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable
	}
	envelope := errors.NewErrorEnvelope(code, http.StatusText(status)).
		WithCorrelationID(GetRequestID(r.Context()))
	writeErrorResponse(w, envelope, status)
}
