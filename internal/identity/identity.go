// Package identity resolves bearer tokens into principals.
package identity

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/roomgate/roomgate/internal/core"
	"github.com/roomgate/roomgate/internal/observability"
)

// ProfileStore persists subject profiles.
type ProfileStore interface {
	GetSubject(ctx context.Context, id string) (*core.Subject, error)
	UpsertSubject(ctx context.Context, subject core.Subject) (*core.Subject, error)
}

// Provider authenticates requests. Profiles may be nil, in which case the
// token claims are the only profile source.
type Provider struct {
	Authority *Authority
	Profiles  ProfileStore
	Roles     *RoleTable
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", &core.AuthError{Reason: "bearer token required"}
	}
	return strings.TrimSpace(token), nil
}

// Authenticate verifies bearer and returns the caller. A subject seen for
// the first time is registered; afterwards its stored profile takes
// precedence over the token claims.
func (p *Provider) Authenticate(ctx context.Context, bearer string) (core.Principal, error) {
	if p == nil || p.Authority == nil {
		return core.Principal{}, &core.ConfigError{Component: "identity provider"}
	}
	if strings.TrimSpace(bearer) == "" {
		return core.Principal{}, &core.AuthError{Reason: "bearer token required"}
	}

	std, claims, err := p.Authority.Verify(bearer)
	if err != nil {
		return core.Principal{}, err
	}

	principal := core.Principal{
		SubjectID:   std.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
		AvatarURL:   claims.Picture,
	}

	if p.Profiles != nil {
		stored, err := p.profile(ctx, principal)
		if err != nil {
			return core.Principal{}, err
		}
		if stored != nil {
			if stored.DisplayName != "" {
				principal.DisplayName = stored.DisplayName
			}
			if stored.AvatarURL != "" {
				principal.AvatarURL = stored.AvatarURL
			}
		}
	}

	if principal.DisplayName == "" {
		principal.DisplayName = fallbackName(principal)
	}
	principal.Role = p.Roles.RoleFor(principal.SubjectID, principal.Email)
	return principal, nil
}

func (p *Provider) profile(ctx context.Context, principal core.Principal) (*core.Subject, error) {
	stored, err := p.Profiles.GetSubject(ctx, principal.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("load subject profile: %w", err)
	}
	if stored != nil {
		return stored, nil
	}

	stored, err = p.Profiles.UpsertSubject(ctx, core.Subject{
		ID:          principal.SubjectID,
		DisplayName: principal.DisplayName,
		AvatarURL:   principal.AvatarURL,
	})
	if err != nil {
		return nil, fmt.Errorf("register subject: %w", err)
	}
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Registered subject",
			zap.String("subject_id", principal.SubjectID))
	}
	return stored, nil
}

func fallbackName(principal core.Principal) string {
	if local, _, ok := strings.Cut(principal.Email, "@"); ok && local != "" {
		return local
	}
	return principal.SubjectID
}
