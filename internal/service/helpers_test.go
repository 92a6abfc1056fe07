package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"liaptui/internal/model"
	"liaptui/internal/repository"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	ctx       context.Context
	clock     *testClock
	store     *repository.MemoryStore
	events    *eventRecorder
	locks     *RoomLocks
	queues    *MessageQueueService
	reconnect *ReconnectionService
}

func newFixture(t *testing.T, queueSize int) *fixture {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := repository.NewMemoryStore().WithClock(clock.Now)
	rec := &eventRecorder{}
	locks := NewRoomLocks()
	queues := NewMessageQueueService(store, rec, locks, queueSize).WithClock(clock.Now)
	reconnect := NewReconnectionService(store, rec, locks, queues, 30*time.Second).WithClock(clock.Now)
	return &fixture{
		ctx:       context.Background(),
		clock:     clock,
		store:     store,
		events:    rec,
		locks:     locks,
		queues:    queues,
		reconnect: reconnect,
	}
}

// seedRoom stores a room with the given humans seated in order.
func (f *fixture) seedRoom(t *testing.T, roomID string, names ...string) {
	t.Helper()
	now := f.clock.Now()
	room := &model.Room{ID: roomID, MaxPlayers: 4, CreatedAt: now, UpdatedAt: now}
	for i, name := range names {
		room.Players = append(room.Players, model.NewPlayer(name, i, false, now))
	}
	if len(names) > 0 {
		room.HostName = names[0]
	}
	require.NoError(t, f.store.Do(f.ctx, func(ctx context.Context, repos repository.Repositories) error {
		return repos.Rooms.Save(ctx, room)
	}))
}

func (f *fixture) seedBot(t *testing.T, roomID, name string) {
	t.Helper()
	require.NoError(t, f.store.Do(f.ctx, func(ctx context.Context, repos repository.Repositories) error {
		room, err := repos.Rooms.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		room.Players = append(room.Players, model.NewPlayer(name, room.NextSeat(), true, f.clock.Now()))
		return repos.Rooms.Save(ctx, room)
	}))
}

func (f *fixture) startGame(t *testing.T, roomID string) {
	t.Helper()
	require.NoError(t, f.store.Do(f.ctx, func(ctx context.Context, repos repository.Repositories) error {
		room, err := repos.Rooms.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		game := model.NewGame(roomID, f.clock.Now())
		game.Start(room.PlayerNames(), f.clock.Now())
		return repos.Games.Save(ctx, game)
	}))
}

func (f *fixture) room(t *testing.T, roomID string) *model.Room {
	t.Helper()
	var room *model.Room
	require.NoError(t, f.store.Do(f.ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		room, err = repos.Rooms.GetByID(ctx, roomID)
		return err
	}))
	return room
}

func (f *fixture) connection(t *testing.T, roomID, name string) *model.PlayerConnection {
	t.Helper()
	var conn *model.PlayerConnection
	require.NoError(t, f.store.Do(f.ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		conn, err = repos.Connections.Get(ctx, roomID, name)
		return err
	}))
	return conn
}

func (f *fixture) queue(t *testing.T, roomID, name string) *model.PlayerQueue {
	t.Helper()
	q, err := f.store.Get(f.ctx, roomID, name)
	require.NoError(t, err)
	return q
}

func eventTypes(msgs []model.QueuedMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.EventType)
	}
	return out
}

// eventRecorder keeps published events in memory so tests can assert on the
// event stream.
type eventRecorder struct {
	mu     sync.Mutex
	events []model.DomainEvent
	fail   error
}

func (r *eventRecorder) PublishBatch(_ context.Context, batch []model.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, batch...)
	return r.fail
}

// FailWith makes later publishes record the batch and then return err.
func (r *eventRecorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

func (r *eventRecorder) Events() []model.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.DomainEvent(nil), r.events...)
}

func (r *eventRecorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.EventType())
	}
	return types
}

func (r *eventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
