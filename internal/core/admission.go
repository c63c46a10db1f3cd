package core

import (
	"regexp"
	"time"
)

// Category groups operations sharing one rate limit.
type Category string

const (
	CategoryAuth   Category = "auth"
	CategoryRead   Category = "read"
	CategoryToken  Category = "token"
	CategoryStatus Category = "status"
)

// RateLimit is a fixed-window quota.
type RateLimit struct {
	Limit  int           `json:"limit"`
	Window time.Duration `json:"window"`
}

// Decision is the outcome of a rate limit check. Degraded decisions were
// admitted without consulting the counter store.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"reset_at"`
	Degraded  bool      `json:"degraded,omitempty"`
}

// FailurePolicy selects the behavior of an operation when its backing
// dependency fails.
type FailurePolicy int

const (
	FailOpen FailurePolicy = iota
	FailClosed
)

func (p FailurePolicy) String() string {
	if p == FailClosed {
		return "fail_closed"
	}
	return "fail_open"
}

// MaxRoomNameLength bounds room names accepted from callers.
const MaxRoomNameLength = 64

var roomNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidRoomName reports whether name uses only the allowed charset.
func ValidRoomName(name string) bool {
	return len(name) <= MaxRoomNameLength && roomNamePattern.MatchString(name)
}

// ValidateRoomName returns a ValidationError for names outside the charset.
func ValidateRoomName(name string) error {
	if name == "" {
		return &ValidationError{Field: "roomName", Message: "room name is required"}
	}
	if !ValidRoomName(name) {
		return &ValidationError{Field: "roomName", Message: "room name may only contain letters, digits, '_' and '-'"}
	}
	return nil
}

// RoomRecord is a room as owned by the realtime provider.
type RoomRecord struct {
	Name            string    `json:"name"`
	SID             string    `json:"sid"`
	Type            string    `json:"type"`
	MaxParticipants int       `json:"max_participants"`
	CreatedAt       time.Time `json:"created_at"`
}

// RoomSpec requests creation of a room.
type RoomSpec struct {
	Name            string
	Type            string
	MaxParticipants int
	EmptyTimeout    time.Duration
}

// LiveRoom is a provider room with its current occupancy.
type LiveRoom struct {
	RoomRecord
	NumParticipants int
}

// RoomInfo summarizes occupancy for one room.
type RoomInfo struct {
	Exists           bool `json:"exists"`
	ParticipantCount int  `json:"participantCount"`
	MaxParticipants  int  `json:"maxParticipants"`
	Synthetic        bool `json:"synthetic,omitempty"`
	Degraded         bool `json:"degraded,omitempty"`
}

// RoomSummary is one entry of a room listing.
type RoomSummary struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	DisplayName      string `json:"displayName"`
	Theme            string `json:"theme,omitempty"`
	Type             string `json:"type"`
	ParticipantCount int    `json:"participantCount"`
	MaxParticipants  int    `json:"maxParticipants"`
	IsLive           bool   `json:"isLive"`
	Synthetic        bool   `json:"-"`
}

// ParticipantInfo is a participant as reported by the provider. Metadata is
// the raw payload the participant joined with.
type ParticipantInfo struct {
	Identity string
	Name     string
	Metadata string
}

// Participant is a live participant with its metadata decoded; malformed metadata decodes to an empty map.
type Participant struct {
	Identity    string         `json:"identity"`
	DisplayName string         `json:"displayName"`
	Metadata    map[string]any `json:"metadata"`
}

// ProfileMetadata travels inside capability tokens as a JSON payload.
type ProfileMetadata struct {
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	SubjectID   string `json:"subjectId"`
	IsHost      bool   `json:"isHost"`
	IsModerator bool   `json:"isModerator"`
}

// Grants are the media permissions of a capability token.
type Grants struct {
	CanPublish     bool `json:"canPublish"`
	CanSubscribe   bool `json:"canSubscribe"`
	CanPublishData bool `json:"canPublishData"`
}

// TokenParams requests a capability token for one room.
type TokenParams struct {
	RoomName            string
	RoomType            string
	ParticipantIdentity string
	Profile             ProfileMetadata
	Grants              Grants
}

// CapabilityToken is a minted, signed room credential. It is never stored.
type CapabilityToken struct {
	JWT                 string          `json:"-"`
	ParticipantIdentity string          `json:"participantIdentity"`
	RoomName            string          `json:"roomName"`
	Metadata            ProfileMetadata `json:"metadata"`
	Grants              Grants          `json:"grants"`
	IssuedAt            time.Time       `json:"issuedAt"`
	ExpiresAt           time.Time       `json:"expiresAt"`
}

// Admission is the result of admitting a participant into a room.
type Admission struct {
	Token CapabilityToken
	Room  RoomRecord
}
