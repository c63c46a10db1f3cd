package handlers

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/roomgate/roomgate/internal/core"
	"github.com/roomgate/roomgate/internal/core/rooms"
	"github.com/roomgate/roomgate/internal/core/status"
	apperrors "github.com/roomgate/roomgate/internal/errors"
	"github.com/roomgate/roomgate/internal/server/middleware"
)

// StatusService toggles and reads ephemeral status flags.
type StatusService interface {
	ParseKind(raw string) (core.StatusKind, error)
	Toggle(ctx context.Context, subjectID string, kind core.StatusKind) (status.Snapshot, error)
	Snapshot(ctx context.Context, subjectID string) ([]status.Snapshot, error)
}

// RoomService lists rooms and admits participants.
type RoomService interface {
	Configured() bool
	Entry(name string) (rooms.CatalogEntry, bool)
	ListRooms(ctx context.Context) ([]core.RoomSummary, error)
	Describe(ctx context.Context, name string) (*rooms.Detail, error)
	Admit(ctx context.Context, principal core.Principal, roomName string) (core.Admission, error)
}

// API serves the room and status endpoints.
type API struct {
	Status    StatusService
	Rooms     RoomService
	ServerURL string
}

type toggleResponse struct {
	Active      bool       `json:"active"`
	ActiveUntil *time.Time `json:"activeUntil"`
}

type flagView struct {
	Active           bool       `json:"active"`
	ActiveUntil      *time.Time `json:"activeUntil"`
	RemainingSeconds *int64     `json:"remainingSeconds"`
}

type roomListResponse struct {
	Rooms []core.RoomSummary `json:"rooms"`
	Mock  bool               `json:"mock,omitempty"`
}

type roomDetailResponse struct {
	Room         core.RoomSummary   `json:"room"`
	Participants []core.Participant `json:"participants"`
	Mock         bool               `json:"mock,omitempty"`
}

// TokenRequest asks for a capability token.
type TokenRequest struct {
	RoomName string `json:"roomName" validate:"required,roomname"`
}

type tokenRoom struct {
	Name        string `json:"name"`
	SID         string `json:"sid"`
	DisplayName string `json:"displayName"`
}

type tokenParticipant struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
}

type tokenResponse struct {
	Token       string           `json:"token"`
	Room        tokenRoom        `json:"room"`
	Participant tokenParticipant `json:"participant"`
	ServerURL   string           `json:"serverUrl"`
}

// ToggleStatus flips the caller's flag of the kind named in the path.
func (a *API) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}

	kind, err := a.Status.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	snap, err := a.Status.Toggle(r.Context(), principal.SubjectID, kind)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toggleResponse{Active: snap.Active, ActiveUntil: snap.ActiveUntil})
}

// GetStatus returns every flag of the caller.
func (a *API) GetStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}

	snaps, err := a.Status.Snapshot(r.Context(), principal.SubjectID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	out := make(map[core.StatusKind]flagView, len(snaps))
	for _, snap := range snaps {
		view := flagView{Active: snap.Active, ActiveUntil: snap.ActiveUntil}
		if snap.Remaining != nil {
			seconds := int64(math.Ceil(snap.Remaining.Seconds()))
			view.RemainingSeconds = &seconds
		}
		out[snap.Kind] = view
	}
	writeJSON(w, http.StatusOK, out)
}

// ListRooms returns the room catalog with occupancy.
func (a *API) ListRooms(w http.ResponseWriter, r *http.Request) {
	summaries, err := a.Rooms.ListRooms(r.Context())
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, roomListResponse{
		Rooms: summaries,
		Mock:  lo.SomeBy(summaries, func(s core.RoomSummary) bool { return s.Synthetic }),
	})
}

// GetRoom returns one room with its participants.
func (a *API) GetRoom(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := core.ValidateRoomName(name); err != nil {
		respondWithError(w, r, err)
		return
	}

	detail, err := a.Rooms.Describe(r.Context(), name)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if detail == nil {
		respondWithError(w, r, apperrors.NewNotFoundError("Room not found"))
		return
	}

	writeJSON(w, http.StatusOK, roomDetailResponse{
		Room:         detail.Room,
		Participants: detail.Participants,
		Mock:         detail.Synthetic,
	})
}

// IssueToken admits the caller into the requested room.
func (a *API) IssueToken(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}

	var req TokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	admission, err := a.Rooms.Admit(r.Context(), principal, req.RoomName)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	display := admission.Room.Name
	if entry, ok := a.Rooms.Entry(admission.Room.Name); ok && entry.DisplayName != "" {
		display = entry.DisplayName
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Token: admission.Token.JWT,
		Room: tokenRoom{
			Name:        admission.Room.Name,
			SID:         admission.Room.SID,
			DisplayName: display,
		},
		Participant: tokenParticipant{
			Identity: admission.Token.ParticipantIdentity,
			Name:     admission.Token.Metadata.DisplayName,
		},
		ServerURL: a.ServerURL,
	})
}

// Session echoes the authenticated caller.
func (a *API) Session(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, principal)
}

func (a *API) principal(w http.ResponseWriter, r *http.Request) (core.Principal, bool) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok || principal.SubjectID == "" {
		respondWithError(w, r, &core.AuthError{Reason: "authentication required"})
		return core.Principal{}, false
	}
	return principal, true
}
