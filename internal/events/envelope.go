package events

import (
	"encoding/json"
	"time"

	"liaptui/internal/model"
)

// Envelope is the wire shape of a published event.
type Envelope struct {
	Type       string            `json:"type"`
	RoomID     string            `json:"roomId"`
	OccurredAt time.Time         `json:"occurredAt"`
	Data       model.DomainEvent `json:"data"`
}

func Encode(e model.DomainEvent) ([]byte, error) {
	return json.Marshal(Envelope{
		Type:       e.EventType(),
		RoomID:     e.Room(),
		OccurredAt: e.OccurredAt(),
		Data:       e,
	})
}
