package service

import (
	"context"
	"fmt"

	"liaptui/internal/log"
	"liaptui/internal/model"
	"liaptui/internal/realtime"
	"liaptui/internal/repository"
)

// Sender delivers one frame to a live session.
type Sender interface {
	SendToConnection(ctx context.Context, connectionID string, msg any) bool
}

// DispatchResult counts what happened to one room-wide event.
type DispatchResult struct {
	Delivered int `json:"delivered"`
	Queued    int `json:"queued"`
	Dropped   int `json:"dropped"`
	Skipped   int `json:"skipped"`
}

// Dispatcher routes game events to every player of a room: live sessions get
// the frame now, disconnected humans get it queued for their return.
type Dispatcher struct {
	uow    repository.UnitOfWork
	locks  *RoomLocks
	sender Sender
	queues *MessageQueueService
}

func NewDispatcher(uow repository.UnitOfWork, locks *RoomLocks, sender Sender, queues *MessageQueueService) *Dispatcher {
	return &Dispatcher{
		uow:    uow,
		locks:  locks,
		sender: sender,
		queues: queues,
	}
}

type liveTarget struct {
	playerName  string
	websocketID string
}

func (d *Dispatcher) DispatchToRoom(ctx context.Context, roomID, eventType string, data map[string]any, critical bool) (DispatchResult, error) {
	var (
		result DispatchResult
		live   []liveTarget
		batch  []model.DomainEvent
	)

	// Offline players are queued under the room lock so a concurrent
	// reconnect either drains the message or sees the player live.
	unlock := d.locks.Lock(roomID)
	err := d.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		result, live, batch = DispatchResult{}, nil, nil
		room, err := repos.Rooms.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if room == nil {
			return model.ErrRoomNotFound
		}

		for _, p := range room.Players {
			if p.OriginalIsBot {
				result.Skipped++
				continue
			}
			conn, err := repos.Connections.Get(ctx, roomID, p.Name)
			if err != nil {
				return err
			}
			if p.IsConnected && conn != nil && conn.IsConnected() {
				live = append(live, liveTarget{playerName: p.Name, websocketID: conn.WebsocketID})
				continue
			}
			added, events, err := d.queues.queueMessageTx(ctx, repos, roomID, p.Name, eventType, data, critical)
			if err != nil {
				return err
			}
			batch = append(batch, events...)
			if added {
				result.Queued++
			} else {
				result.Dropped++
			}
		}
		return nil
	})
	unlock()
	if err != nil {
		return DispatchResult{}, fmt.Errorf("failed to dispatch %s: %w", eventType, err)
	}
	publish(ctx, d.queues.publisher, batch)

	frame := realtime.Frame{Type: eventType, Payload: data}
	for _, t := range live {
		if d.sender != nil && d.sender.SendToConnection(ctx, t.websocketID, frame) {
			result.Delivered++
			continue
		}
		log.Warn("live send of %s to %s in room %s failed, queueing", eventType, t.playerName, roomID)
		added, err := d.queues.QueueMessage(ctx, roomID, t.playerName, eventType, data, critical)
		if err != nil {
			return result, err
		}
		if added {
			result.Queued++
		} else {
			result.Dropped++
		}
	}
	return result, nil
}
