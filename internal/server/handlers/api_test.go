package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomgate/roomgate/internal/core"
	"github.com/roomgate/roomgate/internal/core/rooms"
	"github.com/roomgate/roomgate/internal/core/status"
	"github.com/roomgate/roomgate/internal/core/token"
	"github.com/roomgate/roomgate/internal/server/middleware"
)

type stubProvider struct {
	mu    sync.Mutex
	rooms map[string]core.LiveRoom
}

func (p *stubProvider) CreateRoom(_ context.Context, spec core.RoomSpec) (core.RoomRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.rooms[spec.Name]; ok {
		return core.RoomRecord{}, core.ErrRoomExists
	}
	room := core.RoomRecord{Name: spec.Name, SID: "RM_" + spec.Name, Type: spec.Type, MaxParticipants: spec.MaxParticipants}
	p.rooms[spec.Name] = core.LiveRoom{RoomRecord: room}
	return room, nil
}

func (p *stubProvider) LookupRoom(_ context.Context, name string) (*core.LiveRoom, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	room, ok := p.rooms[name]
	if !ok {
		return nil, nil
	}
	return &room, nil
}

func (p *stubProvider) ListParticipants(context.Context, string) ([]core.ParticipantInfo, error) {
	return []core.ParticipantInfo{{Identity: "user-9", Name: "Nine", Metadata: "{broken"}}, nil
}

type fixture struct {
	router http.Handler
	now    time.Time
}

var host = core.Principal{SubjectID: "user-1", DisplayName: "Ada", Role: core.RoleHost}

// newFixture wires the API on a chi router. Requests carrying an
// X-Test-User header are treated as authenticated.
func newFixture(t *testing.T, provider rooms.Provider) *fixture {
	t.Helper()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	opts := rooms.Options{SyntheticSeed: 42}
	if provider != nil {
		opts.Provider = provider
		opts.Signer = &token.Minter{APIKey: "APIkey", APISecret: "provider-secret-provider-secret-01", Clock: clock}
	}

	api := &API{
		Status:    status.NewEngine(status.NewMemoryStore(host.SubjectID), nil, clock),
		Rooms:     rooms.NewService(opts),
		ServerURL: "wss://rtc.example",
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("X-Test-User") != "" {
				req = req.WithContext(middleware.WithPrincipal(req.Context(), host))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/status/{kind}/toggle", api.ToggleStatus)
	r.Get("/status", api.GetStatus)
	r.Get("/rooms", api.ListRooms)
	r.Get("/rooms/{name}", api.GetRoom)
	r.Post("/rooms/token", api.IssueToken)
	r.Get("/auth/session", api.Session)

	return &fixture{router: r, now: now}
}

func (f *fixture) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if authed {
		req.Header.Set("X-Test-User", "1")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestToggleStatus(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/status/looking/toggle", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	on := decode[toggleResponse](t, rec)
	assert.True(t, on.Active)
	require.NotNil(t, on.ActiveUntil)
	assert.Equal(t, f.now.Add(30*time.Minute), on.ActiveUntil.UTC())

	rec = f.do(t, http.MethodGet, "/status", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	flags := decode[map[string]flagView](t, rec)
	require.NotNil(t, flags["looking"].RemainingSeconds)
	assert.EqualValues(t, 1800, *flags["looking"].RemainingSeconds)
	assert.False(t, flags["available"].Active)
	assert.Nil(t, flags["available"].ActiveUntil)

	rec = f.do(t, http.MethodPost, "/status/looking/toggle", "", true)
	off := decode[toggleResponse](t, rec)
	assert.False(t, off.Active)
	assert.Nil(t, off.ActiveUntil)
}

func TestToggleStatusErrors(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/status/dancing/toggle", "", true).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/status/looking/toggle", "", false).Code)
}

func TestListRoomsSynthetic(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/rooms", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Rooms []core.RoomSummary `json:"rooms"`
		Mock  bool               `json:"mock"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Mock)
	require.Len(t, body.Rooms, len(rooms.DefaultCatalog))

	lobby := body.Rooms[0]
	assert.Equal(t, "lobby-1", lobby.ID)
	assert.Equal(t, 400, lobby.MaxParticipants)
	assert.True(t, lobby.IsLive)
	assert.LessOrEqual(t, lobby.ParticipantCount, 40)
}

func TestGetRoom(t *testing.T) {
	t.Run("synthetic", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(t, http.MethodGet, "/rooms/lobby-1", "", false)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decode[roomDetailResponse](t, rec)
		assert.True(t, body.Mock)
		assert.Equal(t, "Main Lobby", body.Room.DisplayName)
		assert.Empty(t, body.Participants)
	})

	t.Run("unknown", func(t *testing.T) {
		f := newFixture(t, &stubProvider{rooms: map[string]core.LiveRoom{}})
		assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/rooms/nowhere", "", true).Code)
	})

	t.Run("invalid name", func(t *testing.T) {
		f := newFixture(t, nil)
		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/rooms/bad.name", "", false).Code)
	})

	t.Run("live with broken metadata", func(t *testing.T) {
		provider := &stubProvider{rooms: map[string]core.LiveRoom{
			"lobby-1": {RoomRecord: core.RoomRecord{Name: "lobby-1", SID: "RM_1", MaxParticipants: 400}, NumParticipants: 1},
		}}
		f := newFixture(t, provider)

		rec := f.do(t, http.MethodGet, "/rooms/lobby-1", "", true)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[roomDetailResponse](t, rec)
		assert.False(t, body.Mock)
		require.Len(t, body.Participants, 1)
		assert.Empty(t, body.Participants[0].Metadata)
		assert.Equal(t, 1, body.Room.ParticipantCount)
	})
}

func TestIssueToken(t *testing.T) {
	f := newFixture(t, &stubProvider{rooms: map[string]core.LiveRoom{}})

	rec := f.do(t, http.MethodPost, "/rooms/token", `{"roomName":"lobby-1"}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[tokenResponse](t, rec)
	assert.NotEmpty(t, body.Token)
	assert.Equal(t, "lobby-1", body.Room.Name)
	assert.Equal(t, "RM_lobby-1", body.Room.SID)
	assert.Equal(t, "Main Lobby", body.Room.DisplayName)
	assert.Equal(t, "user-1", body.Participant.Identity)
	assert.Equal(t, "Ada", body.Participant.Name)
	assert.Equal(t, "wss://rtc.example", body.ServerURL)
	assert.Equal(t, 2, strings.Count(body.Token, "."))
}

func TestIssueTokenErrors(t *testing.T) {
	t.Run("provider not configured", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(t, http.MethodPost, "/rooms/token", `{"roomName":"lobby-1"}`, true)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	f := newFixture(t, &stubProvider{rooms: map[string]core.LiveRoom{}})
	for name, body := range map[string]string{
		"missing name": `{}`,
		"bad charset":  `{"roomName":"../admin"}`,
		"too long":     `{"roomName":"` + strings.Repeat("a", core.MaxRoomNameLength+1) + `"}`,
		"not json":     `roomName=lobby-1`,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/rooms/token", body, true).Code)
		})
	}

	t.Run("unauthenticated", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/rooms/token", `{"roomName":"lobby-1"}`, false).Code)
	})
}

func TestSession(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/auth/session", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	principal := decode[core.Principal](t, rec)
	assert.Equal(t, "user-1", principal.SubjectID)
	assert.Equal(t, core.RoleHost, principal.Role)
}
