package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"liaptui/internal/log"
	"liaptui/internal/model"
)

var ErrRegistryClosed = errors.New("connection registry is shut down")

// Transport is one live client session. Implementations must be safe for
// concurrent use.
type Transport interface {
	Send(ctx context.Context, data []byte) error
	Close(reason string) error
}

// Frame is the envelope every server-to-client message uses.
type Frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type entry struct {
	transport Transport
	roomID    string
}

// Registry tracks live transport sessions and the room each belongs to.
// Send failures are counted and logged; they never unregister a session.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]entry
	rooms  map[string]map[string]Transport
	closed bool
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]entry),
		rooms: make(map[string]map[string]Transport),
	}
}

// Register binds connectionID to transport in roomID, replacing any earlier
// binding for the same id.
func (r *Registry) Register(connectionID string, transport Transport, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRegistryClosed
	}
	if prev, ok := r.conns[connectionID]; ok {
		r.removeFromRoomLocked(connectionID, prev.roomID)
	}
	r.conns[connectionID] = entry{transport: transport, roomID: roomID}
	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[string]Transport)
	}
	r.rooms[roomID][connectionID] = transport
	log.Debug("registered connection %s in room %s", connectionID, roomID)
	return nil
}

func (r *Registry) Unregister(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.conns[connectionID]
	if !ok {
		return
	}
	delete(r.conns, connectionID)
	r.removeFromRoomLocked(connectionID, prev.roomID)
	log.Debug("unregistered connection %s from room %s", connectionID, prev.roomID)
}

func (r *Registry) removeFromRoomLocked(connectionID, roomID string) {
	room := r.rooms[roomID]
	if room == nil {
		return
	}
	delete(room, connectionID)
	if len(room) == 0 {
		delete(r.rooms, roomID)
	}
}

func (r *Registry) Get(connectionID string) (Transport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[connectionID]
	if !ok {
		return nil, false
	}
	return e.transport, true
}

// ConnectionsInRoom returns a copy of the room's sessions.
func (r *Registry) ConnectionsInRoom(roomID string) map[string]Transport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Transport, len(r.rooms[roomID]))
	for id, t := range r.rooms[roomID] {
		out[id] = t
	}
	return out
}

// BroadcastToRoom sends msg to every session in the room except those in
// exclude and returns how many sends succeeded.
func (r *Registry) BroadcastToRoom(ctx context.Context, roomID string, msg any, exclude ...string) int {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error("broadcast to room %s: encode: %v", roomID, err)
		return 0
	}

	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	delivered, failed := 0, 0
	for id, t := range r.ConnectionsInRoom(roomID) {
		if skip[id] {
			continue
		}
		if err := t.Send(ctx, data); err != nil {
			failed++
			log.Warn("broadcast to connection %s in room %s failed: %v", id, roomID, err)
			continue
		}
		delivered++
	}
	if failed > 0 {
		log.Warn("broadcast to room %s: %d delivered, %d failed", roomID, delivered, failed)
	}
	return delivered
}

// SendToConnection is a best-effort single send.
func (r *Registry) SendToConnection(ctx context.Context, connectionID string, msg any) bool {
	t, ok := r.Get(connectionID)
	if !ok {
		return false
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error("send to connection %s: encode: %v", connectionID, err)
		return false
	}
	if err := t.Send(ctx, data); err != nil {
		log.Warn("send to connection %s failed: %v", connectionID, err)
		return false
	}
	return true
}

// Disconnect closes and unregisters one session, telling the client why.
func (r *Registry) Disconnect(connectionID, reason string) {
	t, ok := r.Get(connectionID)
	if !ok {
		return
	}
	r.Unregister(connectionID)
	if err := t.Close(reason); err != nil {
		log.Warn("close connection %s: %v", connectionID, err)
	}
}

// CloseRoom closes and unregisters every session in the room and returns
// how many there were.
func (r *Registry) CloseRoom(roomID, reason string) int {
	conns := r.ConnectionsInRoom(roomID)
	for id := range conns {
		r.Disconnect(id, reason)
	}
	return len(conns)
}

// PublishBatch relays player presence events to the affected room.
func (r *Registry) PublishBatch(ctx context.Context, batch []model.DomainEvent) error {
	for _, e := range batch {
		switch e.EventType() {
		case model.EventPlayerDisconnected, model.EventPlayerReconnected, model.EventPlayerRemoved:
			r.BroadcastToRoom(ctx, e.Room(), Frame{Type: e.EventType(), Payload: e})
		}
	}
	return nil
}

// Shutdown closes every session and rejects later registrations.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	conns := r.conns
	r.conns = make(map[string]entry)
	r.rooms = make(map[string]map[string]Transport)
	r.mu.Unlock()

	for id, e := range conns {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.transport.Close("server_shutdown"); err != nil {
			log.Warn("close connection %s on shutdown: %v", id, err)
		}
	}
	log.Info("connection registry shut down, closed %d sessions", len(conns))
	return nil
}
