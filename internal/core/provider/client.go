// Package provider talks to the realtime room service through its generated
// Twirp RoomService client.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	"github.com/twitchtv/twirp"

	"github.com/roomgate/roomgate/internal/core"
	"github.com/roomgate/roomgate/internal/metrics"
)

const (
	adminTokenTTL  = 10 * time.Minute
	defaultTimeout = 5 * time.Second
)

// Config holds provider connection settings.
type Config struct {
	URL       string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

// Configured reports whether every credential is present.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.URL) != "" && strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.APISecret) != ""
}

// Client is a RoomService client. It is safe for concurrent use and should be
// built once per process.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	rooms     livekit.RoomService
}

// NewClient builds a client for cfg. The ws/wss schemes used by browser
// clients are mapped to http/https.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if !cfg.Configured() {
		return nil, &core.ConfigError{Component: "realtime provider"}
	}

	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.URL), "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid provider url: %w", err)
	}
	switch base.Scheme {
	case "ws":
		base.Scheme = "http"
	case "wss":
		base.Scheme = "https"
	case "http", "https":
	default:
		return nil, fmt.Errorf("unsupported provider url scheme %q", base.Scheme)
	}

	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:   base.String(),
		apiKey:    strings.TrimSpace(cfg.APIKey),
		apiSecret: cfg.APISecret,
		rooms:     livekit.NewRoomServiceProtobufClient(base.String(), httpClient),
	}, nil
}

// CreateRoom creates a room. A duplicate name yields core.ErrRoomExists.
func (c *Client) CreateRoom(ctx context.Context, spec core.RoomSpec) (core.RoomRecord, error) {
	ctx, err := c.withAuth(ctx, &auth.VideoGrant{RoomCreate: true})
	if err != nil {
		return core.RoomRecord{}, err
	}

	room, err := c.rooms.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:            spec.Name,
		MaxParticipants: uint32(max(spec.MaxParticipants, 0)),
		EmptyTimeout:    uint32(spec.EmptyTimeout / time.Second),
		Metadata:        roomMetadata(spec.Type),
	})
	if err = observe("CreateRoom", err); err != nil {
		return core.RoomRecord{}, err
	}
	return roomRecord(room, spec.Type), nil
}

// LookupRoom returns the live room with name, or nil when it does not exist.
func (c *Client) LookupRoom(ctx context.Context, name string) (*core.LiveRoom, error) {
	ctx, err := c.withAuth(ctx, &auth.VideoGrant{RoomList: true})
	if err != nil {
		return nil, err
	}

	resp, err := c.rooms.ListRooms(ctx, &livekit.ListRoomsRequest{Names: []string{name}})
	if err = observe("ListRooms", err); err != nil {
		return nil, err
	}

	for _, room := range resp.GetRooms() {
		if room.GetName() == name {
			return &core.LiveRoom{
				RoomRecord:      roomRecord(room, roomTypeFromMetadata(room.GetMetadata())),
				NumParticipants: int(room.GetNumParticipants()),
			}, nil
		}
	}
	return nil, nil
}

// ListParticipants returns the participants currently in room.
func (c *Client) ListParticipants(ctx context.Context, room string) ([]core.ParticipantInfo, error) {
	ctx, err := c.withAuth(ctx, &auth.VideoGrant{RoomAdmin: true, Room: room})
	if err != nil {
		return nil, err
	}

	resp, err := c.rooms.ListParticipants(ctx, &livekit.ListParticipantsRequest{Room: room})
	if err = observe("ListParticipants", err); err != nil {
		return nil, err
	}

	out := make([]core.ParticipantInfo, 0, len(resp.GetParticipants()))
	for _, p := range resp.GetParticipants() {
		out = append(out, core.ParticipantInfo{
			Identity: p.GetIdentity(),
			Name:     p.GetName(),
			Metadata: p.GetMetadata(),
		})
	}
	return out, nil
}

// withAuth attaches a short-lived admin token scoped to grant.
func (c *Client) withAuth(ctx context.Context, grant *auth.VideoGrant) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	token, err := auth.NewAccessToken(c.apiKey, c.apiSecret).
		SetVideoGrant(grant).
		SetValidFor(adminTokenTTL).
		ToJWT()
	if err != nil {
		return nil, fmt.Errorf("sign provider token: %w", err)
	}

	header := make(http.Header)
	header.Set("Authorization", "Bearer "+token)
	return twirp.WithHTTPRequestHeaders(ctx, header)
}

// observe records the call outcome and maps Twirp errors onto the domain
// taxonomy.
func observe(method string, err error) error {
	if err == nil {
		metrics.RecordProviderCall(method, true)
		return nil
	}

	var twerr twirp.Error
	if errors.As(err, &twerr) && twerr.Code() == twirp.AlreadyExists {
		metrics.RecordProviderCall(method, true)
		return core.ErrRoomExists
	}

	metrics.RecordProviderCall(method, false)
	return &core.UpstreamError{Op: method, Err: err}
}
