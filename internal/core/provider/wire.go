package provider

import (
	"encoding/json"
	"time"

	"github.com/livekit/protocol/livekit"

	"github.com/roomgate/roomgate/internal/core"
)

type roomMeta struct {
	Type string `json:"type"`
}

func roomRecord(room *livekit.Room, roomType string) core.RoomRecord {
	rec := core.RoomRecord{
		Name:            room.GetName(),
		SID:             room.GetSid(),
		Type:            roomType,
		MaxParticipants: int(room.GetMaxParticipants()),
	}
	if created := room.GetCreationTime(); created > 0 {
		rec.CreatedAt = time.Unix(created, 0).UTC()
	}
	return rec
}

// roomMetadata stores the room type on the provider so lookups can recover it.
func roomMetadata(roomType string) string {
	if roomType == "" {
		return ""
	}
	raw, err := json.Marshal(roomMeta{Type: roomType})
	if err != nil {
		return ""
	}
	return string(raw)
}

func roomTypeFromMetadata(metadata string) string {
	var meta roomMeta
	if err := json.Unmarshal([]byte(metadata), &meta); err != nil {
		return ""
	}
	return meta.Type
}
