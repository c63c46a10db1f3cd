// Package token mints room capability tokens.
package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/livekit/protocol/auth"

	"github.com/roomgate/roomgate/internal/core"
)

// DefaultTTL is the lifetime of a minted token.
const DefaultTTL = 6 * time.Hour

// Claims is the payload of a capability token: registered claims plus the
// provider's grant payload. Metadata carries the JSON encoded profile.
type Claims struct {
	jwt.RegisteredClaims
	auth.ClaimGrants
}

// Minter signs capability tokens with the provider API secret.
type Minter struct {
	APIKey    string
	APISecret string
	TTL       time.Duration
	Clock     func() time.Time
}

// Mint signs a token for params. The token is returned to the caller and
// never stored.
func (m *Minter) Mint(params core.TokenParams) (core.CapabilityToken, error) {
	if m == nil || strings.TrimSpace(m.APIKey) == "" || strings.TrimSpace(m.APISecret) == "" {
		return core.CapabilityToken{}, &core.ConfigError{Component: "token signer"}
	}
	if err := core.ValidateRoomName(params.RoomName); err != nil {
		return core.CapabilityToken{}, err
	}
	if strings.TrimSpace(params.ParticipantIdentity) == "" {
		return core.CapabilityToken{}, &core.ValidationError{Field: "identity", Message: "participant identity is required"}
	}

	metadata, err := json.Marshal(params.Profile)
	if err != nil {
		return core.CapabilityToken{}, fmt.Errorf("encode token metadata: %w", err)
	}

	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.ttl())

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.APIKey,
			Subject:   params.ParticipantIdentity,
			ID:        params.ParticipantIdentity,
			NotBefore: jwt.NewNumericDate(issuedAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		ClaimGrants: auth.ClaimGrants{
			Name:     params.Profile.DisplayName,
			Metadata: string(metadata),
			Video:    &auth.VideoGrant{RoomJoin: true, Room: params.RoomName},
		},
	}
	claims.Video.SetCanPublish(params.Grants.CanPublish)
	claims.Video.SetCanSubscribe(params.Grants.CanSubscribe)
	claims.Video.SetCanPublishData(params.Grants.CanPublishData)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.APISecret))
	if err != nil {
		return core.CapabilityToken{}, fmt.Errorf("sign capability token: %w", err)
	}

	return core.CapabilityToken{
		JWT:                 signed,
		ParticipantIdentity: params.ParticipantIdentity,
		RoomName:            params.RoomName,
		Metadata:            params.Profile,
		Grants:              params.Grants,
		IssuedAt:            issuedAt,
		ExpiresAt:           expiresAt,
	}, nil
}

// Verify parses and validates a token signed by this minter.
func (m *Minter) Verify(raw string) (*Claims, error) {
	if m == nil || m.APISecret == "" {
		return nil, &core.ConfigError{Component: "token signer"}
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(m.APISecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.APIKey),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, errors.Join(&core.AuthError{Reason: "invalid capability token"}, err)
	}
	return claims, nil
}

// Profile decodes the metadata payload of claims.
func (c *Claims) Profile() (core.ProfileMetadata, error) {
	var profile core.ProfileMetadata
	if err := json.Unmarshal([]byte(c.Metadata), &profile); err != nil {
		return core.ProfileMetadata{}, err
	}
	return profile, nil
}

func (m *Minter) ttl() time.Duration {
	if m.TTL > 0 {
		return m.TTL
	}
	return DefaultTTL
}

func (m *Minter) now() time.Time {
	if m != nil && m.Clock != nil {
		return m.Clock()
	}
	return time.Now().UTC()
}
