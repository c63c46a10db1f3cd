package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/roomgate/roomgate/internal/core"
)

// DefaultLeeway tolerates clock skew between the token issuer and us.
const DefaultLeeway = 30 * time.Second

var allowedAlgorithms = []jose.SignatureAlgorithm{jose.HS256}

// ProfileClaims are the non-registered claims carried by session tokens.
type ProfileClaims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// Authority verifies (and, for tooling and tests, issues) HS256 session
// tokens signed with a shared secret.
type Authority struct {
	secret   []byte
	Issuer   string
	Audience string
	Leeway   time.Duration
	Clock    func() time.Time
}

// NewAuthority returns an authority for secret. An empty secret yields a
// ConfigError so callers can refuse to serve authenticated routes.
func NewAuthority(secret, issuer, audience string) (*Authority, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, &core.ConfigError{Component: "identity jwt secret"}
	}
	return &Authority{
		secret:   []byte(secret),
		Issuer:   strings.TrimSpace(issuer),
		Audience: strings.TrimSpace(audience),
		Leeway:   DefaultLeeway,
	}, nil
}

// Issue signs a session token for subject valid for ttl.
func (a *Authority) Issue(subject string, profile ProfileClaims, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("subject is required")
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: a.secret},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := a.now()
	std := josejwt.Claims{
		Subject:   subject,
		Issuer:    a.Issuer,
		IssuedAt:  josejwt.NewNumericDate(now),
		NotBefore: josejwt.NewNumericDate(now),
		Expiry:    josejwt.NewNumericDate(now.Add(ttl)),
	}
	if a.Audience != "" {
		std.Audience = josejwt.Audience{a.Audience}
	}

	token, err := josejwt.Signed(signer).Claims(std).Claims(profile).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize jwt: %w", err)
	}
	return token, nil
}

// Verify checks the signature, expiry, issuer and audience of raw and
// returns its claims. Every failure is an AuthError.
func (a *Authority) Verify(raw string) (josejwt.Claims, ProfileClaims, error) {
	var (
		std     josejwt.Claims
		profile ProfileClaims
	)

	parsed, err := josejwt.ParseSigned(raw, allowedAlgorithms)
	if err != nil {
		return std, profile, errors.Join(&core.AuthError{Reason: "malformed token"}, err)
	}
	if err := parsed.Claims(a.secret, &std, &profile); err != nil {
		return std, profile, errors.Join(&core.AuthError{Reason: "invalid signature"}, err)
	}

	expected := josejwt.Expected{Issuer: a.Issuer, Time: a.now()}
	if a.Audience != "" {
		expected.AnyAudience = josejwt.Audience{a.Audience}
	}
	if err := std.ValidateWithLeeway(expected, a.Leeway); err != nil {
		return std, profile, errors.Join(&core.AuthError{Reason: "invalid claims"}, err)
	}
	if strings.TrimSpace(std.Subject) == "" {
		return std, profile, &core.AuthError{Reason: "missing subject"}
	}
	return std, profile, nil
}

func (a *Authority) now() time.Time {
	if a.Clock != nil {
		return a.Clock()
	}
	return time.Now().UTC()
}
