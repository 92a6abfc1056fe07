package model

import (
	"time"

	"github.com/google/uuid"
)

// Event type names, also used as message subjects and websocket frame types.
const (
	EventPlayerDisconnected      = "player_disconnected"
	EventPlayerReconnected       = "player_reconnected"
	EventPlayerRemoved           = "player_removed"
	EventMessageQueued           = "message_queued"
	EventMessageQueueOverflow    = "message_queue_overflow"
	EventQueuedMessagesDelivered = "queued_messages_delivered"
)

// DomainEvent is anything the core emits for other parts of the system.
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
	Room() string
}

// EventBase carries the identity every event shares.
type EventBase struct {
	EventID   string    `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`
	RoomID    string    `json:"roomId"`
}

func newEventBase(roomID string, at time.Time) EventBase {
	return EventBase{
		EventID:   uuid.New().String(),
		Timestamp: at,
		RoomID:    roomID,
	}
}

func (e EventBase) OccurredAt() time.Time { return e.Timestamp }
func (e EventBase) Room() string          { return e.RoomID }

type PlayerDisconnected struct {
	EventBase
	PlayerName      string    `json:"playerName"`
	DisconnectTime  time.Time `json:"disconnectTime"`
	WasBotActivated bool      `json:"wasBotActivated"`
	GameInProgress  bool      `json:"gameInProgress"`
}

func NewPlayerDisconnected(roomID, player string, at time.Time, botActivated, inProgress bool) PlayerDisconnected {
	return PlayerDisconnected{
		EventBase:       newEventBase(roomID, at),
		PlayerName:      player,
		DisconnectTime:  at,
		WasBotActivated: botActivated,
		GameInProgress:  inProgress,
	}
}

func (PlayerDisconnected) EventType() string { return EventPlayerDisconnected }

type PlayerReconnected struct {
	EventBase
	PlayerName        string    `json:"playerName"`
	ReconnectTime     time.Time `json:"reconnectTime"`
	WasBotDeactivated bool      `json:"wasBotDeactivated"`
	MessagesRestored  int       `json:"messagesRestored"`
}

func NewPlayerReconnected(roomID, player string, at time.Time, botDeactivated bool, restored int) PlayerReconnected {
	return PlayerReconnected{
		EventBase:         newEventBase(roomID, at),
		PlayerName:        player,
		ReconnectTime:     at,
		WasBotDeactivated: botDeactivated,
		MessagesRestored:  restored,
	}
}

func (PlayerReconnected) EventType() string { return EventPlayerReconnected }

// PlayerRemoved is emitted when a player is dropped after staying offline
// past the removal timeout.
type PlayerRemoved struct {
	EventBase
	PlayerName             string  `json:"playerName"`
	DisconnectedForSeconds float64 `json:"disconnectedForSeconds"`
	MessagesDiscarded      int     `json:"messagesDiscarded"`
}

func NewPlayerRemoved(roomID, player string, at time.Time, offline time.Duration, discarded int) PlayerRemoved {
	return PlayerRemoved{
		EventBase:              newEventBase(roomID, at),
		PlayerName:             player,
		DisconnectedForSeconds: offline.Seconds(),
		MessagesDiscarded:      discarded,
	}
}

func (PlayerRemoved) EventType() string { return EventPlayerRemoved }

type MessageQueued struct {
	EventBase
	PlayerName      string `json:"playerName"`
	EventTypeQueued string `json:"eventTypeQueued"`
	IsCritical      bool   `json:"isCritical"`
	QueueSize       int    `json:"queueSize"`
}

func NewMessageQueued(roomID, player, queuedType string, critical bool, size int, at time.Time) MessageQueued {
	return MessageQueued{
		EventBase:       newEventBase(roomID, at),
		PlayerName:      player,
		EventTypeQueued: queuedType,
		IsCritical:      critical,
		QueueSize:       size,
	}
}

func (MessageQueued) EventType() string { return EventMessageQueued }

type MessageQueueOverflow struct {
	EventBase
	PlayerName            string `json:"playerName"`
	DroppedCount          int    `json:"droppedCount"`
	RetainedCriticalCount int    `json:"retainedCriticalCount"`
	QueueCapacity         int    `json:"queueCapacity"`
}

func NewMessageQueueOverflow(roomID, player string, retainedCritical, capacity int, at time.Time) MessageQueueOverflow {
	return MessageQueueOverflow{
		EventBase:             newEventBase(roomID, at),
		PlayerName:            player,
		DroppedCount:          1,
		RetainedCriticalCount: retainedCritical,
		QueueCapacity:         capacity,
	}
}

func (MessageQueueOverflow) EventType() string { return EventMessageQueueOverflow }

type QueuedMessagesDelivered struct {
	EventBase
	PlayerName              string  `json:"playerName"`
	MessageCount            int     `json:"messageCount"`
	OldestMessageAgeSeconds float64 `json:"oldestMessageAgeSeconds"`
	CriticalMessageCount    int     `json:"criticalMessageCount"`
}

func NewQueuedMessagesDelivered(roomID, player string, count, critical int, oldest time.Duration, at time.Time) QueuedMessagesDelivered {
	return QueuedMessagesDelivered{
		EventBase:               newEventBase(roomID, at),
		PlayerName:              player,
		MessageCount:            count,
		OldestMessageAgeSeconds: oldest.Seconds(),
		CriticalMessageCount:    critical,
	}
}

func (QueuedMessagesDelivered) EventType() string { return EventQueuedMessagesDelivered }
