package token

import (
	"testing"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/stretchr/testify/require"

	"github.com/roomgate/roomgate/internal/core"
)

func testMinter(now time.Time) *Minter {
	return &Minter{
		APIKey:    "APIkey123",
		APISecret: "provider-secret-provider-secret-32b",
		Clock:     func() time.Time { return now },
	}
}

func TestMintRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	minter := testMinter(now)

	tok, err := minter.Mint(core.TokenParams{
		RoomName:            "lobby-1",
		ParticipantIdentity: "user-42",
		Profile: core.ProfileMetadata{
			DisplayName: "Ada",
			AvatarURL:   "https://cdn.example/ada.png",
			SubjectID:   "user-42",
			IsHost:      true,
		},
		Grants: core.Grants{CanPublish: true, CanSubscribe: true, CanPublishData: true},
	})
	require.NoError(t, err)
	require.NotEmpty(t, tok.JWT)
	require.Equal(t, now.Add(DefaultTTL), tok.ExpiresAt)

	claims, err := minter.Verify(tok.JWT)
	require.NoError(t, err)
	require.Equal(t, "user-42", claims.Subject)
	require.Equal(t, "Ada", claims.Name)
	require.True(t, claims.Video.RoomJoin)
	require.Equal(t, "lobby-1", claims.Video.Room)
	require.True(t, *claims.Video.CanPublish)

	profile, err := claims.Profile()
	require.NoError(t, err)
	require.True(t, profile.IsHost)
	require.Equal(t, "https://cdn.example/ada.png", profile.AvatarURL)
}

func TestMintedTokenAcceptedByProviderVerifier(t *testing.T) {
	minter := testMinter(time.Now().UTC())

	tok, err := minter.Mint(core.TokenParams{
		RoomName:            "lobby-1",
		ParticipantIdentity: "user-7",
		Profile:             core.ProfileMetadata{DisplayName: "Grace"},
		Grants:              core.Grants{CanSubscribe: true, CanPublishData: true},
	})
	require.NoError(t, err)

	verifier, err := auth.ParseAPIToken(tok.JWT)
	require.NoError(t, err)
	require.Equal(t, "APIkey123", verifier.APIKey())
	require.Equal(t, "user-7", verifier.Identity())

	grants, err := verifier.Verify(minter.APISecret)
	require.NoError(t, err)
	require.Equal(t, "Grace", grants.Name)
	require.True(t, grants.Video.RoomJoin)
	require.Equal(t, "lobby-1", grants.Video.Room)
	require.False(t, grants.Video.GetCanPublish())
	require.True(t, grants.Video.GetCanSubscribe())
	require.True(t, grants.Video.GetCanPublishData())
}

func TestMintRejectsBadRoomName(t *testing.T) {
	_, err := testMinter(time.Now()).Mint(core.TokenParams{RoomName: "room name!", ParticipantIdentity: "u"})
	require.True(t, core.IsValidation(err))
}

func TestMintRequiresSecret(t *testing.T) {
	_, err := (&Minter{APIKey: "k"}).Mint(core.TokenParams{RoomName: "lobby", ParticipantIdentity: "u"})
	require.True(t, core.IsConfig(err))
}

func TestVerifyRejectsExpired(t *testing.T) {
	issued := time.Now().UTC().Add(-7 * time.Hour)
	tok, err := testMinter(issued).Mint(core.TokenParams{RoomName: "lobby", ParticipantIdentity: "u"})
	require.NoError(t, err)

	_, err = testMinter(time.Now().UTC()).Verify(tok.JWT)
	require.True(t, core.IsAuth(err))
}
