package rooms

import (
	"slices"
	"time"

	"github.com/roomgate/roomgate/internal/core"
)

// DefaultRoomType is used for rooms without an explicit type.
const DefaultRoomType = "pulse"

// RoomType holds per-type room settings. An empty PublishRoles list lets
// every participant publish.
type RoomType struct {
	MaxParticipants int
	EmptyTimeout    time.Duration
	PublishRoles    []core.Role
}

// CatalogEntry is a known room definition.
type CatalogEntry struct {
	Name        string
	DisplayName string
	Theme       string
	Type        string
}

// DefaultTypes are the built-in room types.
var DefaultTypes = map[string]RoomType{
	DefaultRoomType: {MaxParticipants: 400, EmptyTimeout: 5 * time.Minute},
	"stage": {
		MaxParticipants: 1000,
		EmptyTimeout:    10 * time.Minute,
		PublishRoles:    []core.Role{core.RoleHost, core.RoleModerator, core.RoleAdmin},
	},
}

// DefaultCatalog lists the rooms shown when none are configured.
var DefaultCatalog = []CatalogEntry{
	{Name: "lobby-1", DisplayName: "Main Lobby", Theme: "lobby", Type: DefaultRoomType},
	{Name: "night-owls", DisplayName: "Night Owls", Theme: "late-night", Type: DefaultRoomType},
	{Name: "study-hall", DisplayName: "Study Hall", Theme: "focus", Type: DefaultRoomType},
}

// GrantsFor returns the media permissions of principal in a room of rt.
// Everyone subscribes and sends data. Elevated roles always publish.
func GrantsFor(principal core.Principal, rt RoomType) core.Grants {
	canPublish := len(rt.PublishRoles) == 0 ||
		principal.Role.Elevated() ||
		slices.Contains(rt.PublishRoles, principal.Role)

	return core.Grants{
		CanPublish:     canPublish,
		CanSubscribe:   true,
		CanPublishData: true,
	}
}

// ProfileFor builds the token metadata for principal.
func ProfileFor(principal core.Principal) core.ProfileMetadata {
	return core.ProfileMetadata{
		DisplayName: principal.DisplayName,
		AvatarURL:   principal.AvatarURL,
		SubjectID:   principal.SubjectID,
		IsHost:      principal.Role == core.RoleHost || principal.Role == core.RoleAdmin,
		IsModerator: principal.Role == core.RoleModerator || principal.Role == core.RoleAdmin,
	}
}
