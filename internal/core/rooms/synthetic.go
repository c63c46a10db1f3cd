package rooms

import (
	"github.com/roomgate/roomgate/internal/core"
)

// syntheticInfo fabricates occupancy for a catalog room while no provider is
// configured. Counts come from the service RNG; a fixed seed makes them
// reproducible.
func (s *Service) syntheticInfo(entry CatalogEntry) core.RoomInfo {
	_, rt := s.RoomType(entry.Type)

	s.rngMu.Lock()
	count := s.rng.IntN(rt.MaxParticipants/10 + 1)
	s.rngMu.Unlock()

	return core.RoomInfo{
		Exists:           true,
		ParticipantCount: count,
		MaxParticipants:  rt.MaxParticipants,
		Synthetic:        true,
	}
}
