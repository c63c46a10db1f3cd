package core

import (
	"fmt"
	"strings"
	"time"
)

// StatusKind names an independent ephemeral status flag.
type StatusKind string

const (
	StatusAvailable StatusKind = "available"
	StatusLooking   StatusKind = "looking"
)

// StatusRecord describes one flag for one subject. There is no stored
// boolean: a record is active only while ActiveUntil lies in the future.
type StatusRecord struct {
	SubjectID   string     `json:"subject_id"`
	Kind        StatusKind `json:"kind"`
	ActiveUntil *time.Time `json:"active_until"`
}

// Subject is the stored profile of an authenticated principal.
type Subject struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Role grants elevated room permissions.
type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleHost      Role = "host"
	RoleAdmin     Role = "admin"
)

// Elevated reports whether the role may always publish.
func (r Role) Elevated() bool {
	switch r {
	case RoleModerator, RoleHost, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole resolves a configured role name. An empty name is a member.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch role {
	case "":
		return RoleMember, nil
	case RoleMember, RoleModerator, RoleHost, RoleAdmin:
		return role, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// Principal is the authenticated caller.
type Principal struct {
	SubjectID   string `json:"subject_id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Role        Role   `json:"role"`
}
