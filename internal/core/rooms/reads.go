package rooms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roomgate/roomgate/internal/core"
	"github.com/roomgate/roomgate/internal/metrics"
)

// listConcurrency caps concurrent provider lookups during a listing.
const listConcurrency = 8

// Detail is a room with its current participants.
type Detail struct {
	Room         core.RoomSummary
	Participants []core.Participant
	Synthetic    bool
}

// ListParticipants returns the participants of a room. Metadata that does
// not decode to a JSON object is replaced by an empty object so one bad
// participant never fails the list.
func (s *Service) ListParticipants(ctx context.Context, name string) ([]core.Participant, error) {
	if err := core.ValidateRoomName(name); err != nil {
		return nil, err
	}
	if !s.Configured() {
		return []core.Participant{}, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	infos, err := s.provider.ListParticipants(callCtx, name)
	if err != nil {
		return nil, err
	}

	return lo.Map(infos, func(info core.ParticipantInfo, _ int) core.Participant {
		return core.Participant{
			Identity:    info.Identity,
			DisplayName: displayName(info),
			Metadata:    ParseMetadata(info.Metadata),
		}
	}), nil
}

// ParseMetadata decodes a participant metadata payload, yielding an empty
// object for anything that is not a JSON object.
func ParseMetadata(raw string) map[string]any {
	out := map[string]any{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

// GetRoomInfo returns occupancy for one room, or nil when the room is
// neither live nor a known definition. A provider failure degrades to
// {exists:false, participantCount:0} instead of an error.
func (s *Service) GetRoomInfo(ctx context.Context, name string) (*core.RoomInfo, error) {
	if err := core.ValidateRoomName(name); err != nil {
		return nil, err
	}

	entry, known := s.Entry(name)
	if !s.Configured() {
		if !known {
			return nil, nil
		}
		info := s.syntheticInfo(entry)
		return &info, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	live, err := s.provider.LookupRoom(callCtx, name)
	if err != nil {
		logWarn("Room lookup failed; degrading entry",
			zap.String("room", name),
			zap.Error(err))
		return &core.RoomInfo{Degraded: true}, nil
	}
	if live == nil {
		if !known {
			return nil, nil
		}
		_, rt := s.RoomType(entry.Type)
		return &core.RoomInfo{MaxParticipants: rt.MaxParticipants}, nil
	}

	return &core.RoomInfo{
		Exists:           true,
		ParticipantCount: live.NumParticipants,
		MaxParticipants:  s.maxFor(live.RoomRecord, entry.Type),
	}, nil
}

// ListRooms returns every catalog room with its occupancy. Lookups run
// concurrently; under FailOpen a failing room only degrades its own entry.
func (s *Service) ListRooms(ctx context.Context) ([]core.RoomSummary, error) {
	if !s.Configured() {
		metrics.RecordSyntheticRead("list")
	}

	infos := make([]core.RoomInfo, len(s.catalog))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)

	for i, entry := range s.catalog {
		g.Go(func() error {
			info, err := s.GetRoomInfo(gctx, entry.Name)
			if err != nil {
				return err
			}
			if info == nil {
				info = &core.RoomInfo{}
			}
			if info.Degraded && s.onListError == core.FailClosed {
				return &core.UpstreamError{Op: "ListRooms", Err: fmt.Errorf("lookup failed for room %q", entry.Name)}
			}
			infos[i] = *info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return lo.Map(s.catalog, func(entry CatalogEntry, i int) core.RoomSummary {
		return s.summary(s.byName[entry.Name], infos[i])
	}), nil
}

// Describe returns a room with its participants, or nil when the room is
// neither live nor a known definition. Provider failures are returned to
// the caller.
func (s *Service) Describe(ctx context.Context, name string) (*Detail, error) {
	if err := core.ValidateRoomName(name); err != nil {
		return nil, err
	}

	entry, known := s.Entry(name)
	if !s.Configured() {
		if !known {
			return nil, nil
		}
		metrics.RecordSyntheticRead("detail")
		return &Detail{
			Room:         s.summary(entry, s.syntheticInfo(entry)),
			Participants: []core.Participant{},
			Synthetic:    true,
		}, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	live, err := s.provider.LookupRoom(callCtx, name)
	if err != nil {
		return nil, err
	}
	if live == nil && !known {
		return nil, nil
	}
	if !known {
		entry = CatalogEntry{Name: name, DisplayName: name, Type: live.Type}
	}

	info := core.RoomInfo{}
	participants := []core.Participant{}
	if live != nil {
		info = core.RoomInfo{
			Exists:           true,
			ParticipantCount: live.NumParticipants,
			MaxParticipants:  s.maxFor(live.RoomRecord, entry.Type),
		}
		participants, err = s.ListParticipants(ctx, name)
		if err != nil {
			return nil, err
		}
		info.ParticipantCount = len(participants)
	}

	return &Detail{Room: s.summary(entry, info), Participants: participants}, nil
}

func (s *Service) summary(entry CatalogEntry, info core.RoomInfo) core.RoomSummary {
	typeName, rt := s.RoomType(entry.Type)
	maxParticipants := info.MaxParticipants
	if maxParticipants == 0 {
		maxParticipants = rt.MaxParticipants
	}
	display := entry.DisplayName
	if display == "" {
		display = entry.Name
	}

	return core.RoomSummary{
		ID:               entry.Name,
		Name:             entry.Name,
		DisplayName:      display,
		Theme:            entry.Theme,
		Type:             typeName,
		ParticipantCount: info.ParticipantCount,
		MaxParticipants:  maxParticipants,
		IsLive:           info.Exists,
		Synthetic:        info.Synthetic,
	}
}

func (s *Service) maxFor(room core.RoomRecord, typeName string) int {
	if room.MaxParticipants > 0 {
		return room.MaxParticipants
	}
	_, rt := s.RoomType(typeName)
	return rt.MaxParticipants
}

func displayName(info core.ParticipantInfo) string {
	if info.Name != "" {
		return info.Name
	}
	if name, ok := ParseMetadata(info.Metadata)["displayName"].(string); ok && name != "" {
		return name
	}
	return info.Identity
}
