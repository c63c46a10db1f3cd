package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomgate/roomgate/internal/core"
)

type tokenTable map[string]core.Principal

func (t tokenTable) Authenticate(_ context.Context, bearer string) (core.Principal, error) {
	principal, ok := t[bearer]
	if !ok {
		return core.Principal{}, &core.AuthError{Reason: "unknown token"}
	}
	return principal, nil
}

func parseBearer(header string) (string, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", &core.AuthError{Reason: "bearer token required"}
	}
	return token, nil
}

func echoPrincipal() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFrom(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(principal.SubjectID))
	})
}

func TestAuthRequire(t *testing.T) {
	auth := &Auth{
		Authenticator: tokenTable{"good": {SubjectID: "user-1", Role: core.RoleHost}},
		ParseBearer:   parseBearer,
	}
	handler := auth.Require(nil)(echoPrincipal())

	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-1", rec.Body.String())
	})

	for name, header := range map[string]string{"missing": "", "unknown": "Bearer bad", "scheme": "Basic good"} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
		})
	}
}

func TestAuthRequireSkip(t *testing.T) {
	auth := &Auth{Authenticator: tokenTable{}, ParseBearer: parseBearer}
	handler := auth.Require(func(*http.Request) bool { return true })(echoPrincipal())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/lobby-1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthRequireWithoutAuthenticator(t *testing.T) {
	handler := (&Auth{}).Require(nil)(echoPrincipal())

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
