// Package rooms admits participants into realtime rooms.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/roomgate/roomgate/internal/core"
	"github.com/roomgate/roomgate/internal/metrics"
	"github.com/roomgate/roomgate/internal/observability"
)

// DefaultTimeout bounds each provider call.
const DefaultTimeout = 5 * time.Second

// Provider is the realtime room backend.
type Provider interface {
	CreateRoom(ctx context.Context, spec core.RoomSpec) (core.RoomRecord, error)
	LookupRoom(ctx context.Context, name string) (*core.LiveRoom, error)
	ListParticipants(ctx context.Context, room string) ([]core.ParticipantInfo, error)
}

// Signer mints capability tokens.
type Signer interface {
	Mint(params core.TokenParams) (core.CapabilityToken, error)
}

// Options configures a Service. A nil Provider puts the service in
// synthetic mode.
type Options struct {
	Provider      Provider
	Signer        Signer
	Types         map[string]RoomType
	DefaultType   string
	Catalog       []CatalogEntry
	Timeout       time.Duration
	SyntheticSeed uint64

	// OnListError selects how room listings react to a failing room.
	// FailOpen degrades that entry; FailClosed fails the listing.
	OnListError core.FailurePolicy
}

// Service implements room existence, admission and occupancy reads.
type Service struct {
	provider    Provider
	signer      Signer
	types       map[string]RoomType
	defaultType string
	catalog     []CatalogEntry
	byName      map[string]CatalogEntry
	timeout     time.Duration
	onListError core.FailurePolicy

	ensure singleflight.Group

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService builds a service from opts.
func NewService(opts Options) *Service {
	types := opts.Types
	if len(types) == 0 {
		types = DefaultTypes
	}
	defaultType := strings.TrimSpace(opts.DefaultType)
	if defaultType == "" {
		defaultType = DefaultRoomType
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = DefaultCatalog
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	seed := opts.SyntheticSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	s := &Service{
		provider:    opts.Provider,
		signer:      opts.Signer,
		types:       types,
		defaultType: defaultType,
		catalog:     catalog,
		byName:      make(map[string]CatalogEntry, len(catalog)),
		timeout:     timeout,
		onListError: opts.OnListError,
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	for _, entry := range catalog {
		if entry.Type == "" {
			entry.Type = defaultType
		}
		s.byName[entry.Name] = entry
	}
	return s
}

// Configured reports whether a realtime provider is attached.
func (s *Service) Configured() bool {
	return s != nil && s.provider != nil
}

// RoomType returns the settings for name, falling back to the default type.
func (s *Service) RoomType(name string) (string, RoomType) {
	if rt, ok := s.types[name]; ok {
		return name, rt
	}
	if rt, ok := s.types[s.defaultType]; ok {
		return s.defaultType, rt
	}
	return DefaultRoomType, DefaultTypes[DefaultRoomType]
}

// Entry returns the catalog definition for name.
func (s *Service) Entry(name string) (CatalogEntry, bool) {
	entry, ok := s.byName[name]
	return entry, ok
}

// EnsureRoom returns the room named name, creating it when missing.
// Concurrent calls for the same name and room type share one provider round
// trip, and an already-exists answer from the provider is resolved by reading
// the room. A room that already exists keeps the type it was created with.
func (s *Service) EnsureRoom(ctx context.Context, name string, roomType string) (core.RoomRecord, error) {
	if err := core.ValidateRoomName(name); err != nil {
		return core.RoomRecord{}, err
	}
	if !s.Configured() {
		return core.RoomRecord{}, &core.ConfigError{Component: "realtime provider"}
	}

	typeName, rt := s.RoomType(roomType)
	result, err, _ := s.ensure.Do(ensureKey(name, typeName), func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		room, err := s.provider.CreateRoom(callCtx, core.RoomSpec{
			Name:            name,
			Type:            typeName,
			MaxParticipants: rt.MaxParticipants,
			EmptyTimeout:    rt.EmptyTimeout,
		})
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, core.ErrRoomExists) {
			return nil, err
		}

		live, err := s.provider.LookupRoom(callCtx, name)
		if err != nil {
			return nil, err
		}
		if live == nil {
			return nil, &core.UpstreamError{Op: "EnsureRoom", Err: fmt.Errorf("room %q reported as existing but not found", name)}
		}
		return live.RoomRecord, nil
	})
	if err != nil {
		return core.RoomRecord{}, err
	}

	room := result.(core.RoomRecord)
	if room.Type == "" {
		room.Type = typeName
	}
	if room.MaxParticipants == 0 {
		room.MaxParticipants = rt.MaxParticipants
	}
	return room, nil
}

// ensureKey scopes a shared EnsureRoom flight to one room and type.
func ensureKey(name, typeName string) string {
	return name + "\x00" + typeName
}

// MintToken ensures the room exists and signs a token for params. The room
// name is validated before any provider call, and an unconfigured provider
// fails closed: synthetic tokens are never issued.
func (s *Service) MintToken(ctx context.Context, params core.TokenParams) (core.Admission, error) {
	if err := core.ValidateRoomName(params.RoomName); err != nil {
		return core.Admission{}, err
	}
	if !s.Configured() || s.signer == nil {
		return core.Admission{}, &core.ConfigError{Component: "realtime provider"}
	}

	room, err := s.EnsureRoom(ctx, params.RoomName, params.RoomType)
	if err != nil {
		return core.Admission{}, err
	}

	tok, err := s.signer.Mint(params)
	if err != nil {
		return core.Admission{}, err
	}

	metrics.RecordTokenMinted(room.Type, tok.Grants.CanPublish)
	return core.Admission{Token: tok, Room: room}, nil
}

// Admit mints a token for principal in roomName using the room type's grant
// policy and the principal's profile.
func (s *Service) Admit(ctx context.Context, principal core.Principal, roomName string) (core.Admission, error) {
	if err := core.ValidateRoomName(roomName); err != nil {
		return core.Admission{}, err
	}
	if strings.TrimSpace(principal.SubjectID) == "" {
		return core.Admission{}, &core.AuthError{}
	}

	typeName := s.defaultType
	if entry, ok := s.Entry(roomName); ok {
		typeName = entry.Type
	}
	typeName, rt := s.RoomType(typeName)

	return s.MintToken(ctx, core.TokenParams{
		RoomName:            roomName,
		RoomType:            typeName,
		ParticipantIdentity: principal.SubjectID,
		Profile:             ProfileFor(principal),
		Grants:              GrantsFor(principal, rt),
	})
}

func logWarn(msg string, fields ...zap.Field) {
	if observability.ServerLogger != nil {
		observability.ServerLogger.Warn(msg, fields...)
	}
}
