package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"liaptui/internal/model"
)

// MemoryStore keeps every record in process. It backs the "memory" storage
// driver and the service tests. Units of work run one at a time and commit
// atomically under the store lock.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	now  func() time.Time

	rooms       map[string]*model.Room
	games       map[string]*model.Game
	connections map[queueKey]*model.PlayerConnection
	queues      map[queueKey]*model.PlayerQueue
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:         time.Now,
		rooms:       make(map[string]*model.Room),
		games:       make(map[string]*model.Game),
		connections: make(map[queueKey]*model.PlayerConnection),
		queues:      make(map[queueKey]*model.PlayerQueue),
	}
}

// WithClock overrides the clock used to stamp new queues.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	rooms := newStagedMap(&s.mu, s.rooms, (*model.Room).Clone)
	games := newStagedMap(&s.mu, s.games, (*model.Game).Clone)
	conns := newStagedMap(&s.mu, s.connections, (*model.PlayerConnection).Clone)
	queues := newStagedQueueRepo(s, s.now)

	err := fn(ctx, Repositories{
		Rooms:         &memoryRoomRepo{rooms},
		Games:         &memoryGameRepo{games},
		Connections:   &memoryConnectionRepo{conns},
		MessageQueues: queues,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rooms.commit()
	games.commit()
	conns.commit()
	s.applyLocked(queues.pending())
	return nil
}

// QueueStore

func (s *MemoryStore) Get(_ context.Context, roomID, playerName string) (*model.PlayerQueue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queues[queueKey{roomID, playerName}].Clone(), nil
}

func (s *MemoryStore) ListByRoom(_ context.Context, roomID string) ([]*model.PlayerQueue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var queues []*model.PlayerQueue
	for key, q := range s.queues {
		if key.roomID == roomID {
			queues = append(queues, q.Clone())
		}
	}
	sort.Slice(queues, func(i, j int) bool { return queues[i].PlayerName < queues[j].PlayerName })
	return queues, nil
}

func (s *MemoryStore) Apply(_ context.Context, writes []QueueWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(writes)
	return nil
}

func (s *MemoryStore) applyLocked(writes []QueueWrite) {
	for _, w := range writes {
		key := queueKey{w.RoomID, w.PlayerName}
		if w.Queue == nil {
			delete(s.queues, key)
			continue
		}
		s.queues[key] = w.Queue.Clone()
	}
}

// stagedMap overlays uncommitted writes on a shared map. Values are cloned
// on the way in and out so callers never alias committed state.
type stagedMap[K comparable, V comparable] struct {
	mu      *sync.RWMutex
	base    map[K]V
	clone   func(V) V
	writes  map[K]V
	deleted map[K]bool
}

func newStagedMap[K comparable, V comparable](mu *sync.RWMutex, base map[K]V, clone func(V) V) *stagedMap[K, V] {
	return &stagedMap[K, V]{
		mu:      mu,
		base:    base,
		clone:   clone,
		writes:  make(map[K]V),
		deleted: make(map[K]bool),
	}
}

func (m *stagedMap[K, V]) get(key K) (V, bool) {
	var zero V
	if m.deleted[key] {
		return zero, false
	}
	if v, ok := m.writes[key]; ok {
		return m.clone(v), true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.base[key]
	if !ok {
		return zero, false
	}
	return m.clone(v), true
}

func (m *stagedMap[K, V]) set(key K, v V) {
	delete(m.deleted, key)
	m.writes[key] = m.clone(v)
}

func (m *stagedMap[K, V]) remove(key K) {
	delete(m.writes, key)
	m.deleted[key] = true
}

// values returns every visible value whose key matches keep.
func (m *stagedMap[K, V]) values(keep func(K) bool) []V {
	seen := make(map[K]bool)
	var out []V
	for k, v := range m.writes {
		if keep(k) {
			seen[k] = true
			out = append(out, m.clone(v))
		}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for k, v := range m.base {
		if seen[k] || m.deleted[k] || !keep(k) {
			continue
		}
		out = append(out, m.clone(v))
	}
	return out
}

// commit must run with mu held for writing.
func (m *stagedMap[K, V]) commit() {
	for k := range m.deleted {
		delete(m.base, k)
	}
	for k, v := range m.writes {
		m.base[k] = v
	}
}

type memoryRoomRepo struct {
	m *stagedMap[string, *model.Room]
}

func (r *memoryRoomRepo) GetByID(_ context.Context, id string) (*model.Room, error) {
	room, _ := r.m.get(id)
	return room, nil
}

func (r *memoryRoomRepo) Save(_ context.Context, room *model.Room) error {
	r.m.set(room.ID, room)
	return nil
}

func (r *memoryRoomRepo) Delete(_ context.Context, id string) error {
	r.m.remove(id)
	return nil
}

func (r *memoryRoomRepo) ListIDs(_ context.Context) ([]string, error) {
	rooms := r.m.values(func(string) bool { return true })
	ids := make([]string, 0, len(rooms))
	for _, room := range rooms {
		ids = append(ids, room.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

type memoryGameRepo struct {
	m *stagedMap[string, *model.Game]
}

func (r *memoryGameRepo) GetByRoomID(_ context.Context, roomID string) (*model.Game, error) {
	game, _ := r.m.get(roomID)
	return game, nil
}

func (r *memoryGameRepo) Save(_ context.Context, game *model.Game) error {
	r.m.set(game.RoomID, game)
	return nil
}

func (r *memoryGameRepo) Delete(_ context.Context, roomID string) error {
	r.m.remove(roomID)
	return nil
}

type memoryConnectionRepo struct {
	m *stagedMap[queueKey, *model.PlayerConnection]
}

func (r *memoryConnectionRepo) Get(_ context.Context, roomID, playerName string) (*model.PlayerConnection, error) {
	conn, _ := r.m.get(queueKey{roomID, playerName})
	return conn, nil
}

func (r *memoryConnectionRepo) Save(_ context.Context, conn *model.PlayerConnection) error {
	r.m.set(queueKey{conn.RoomID, conn.PlayerName}, conn)
	return nil
}

func (r *memoryConnectionRepo) Delete(_ context.Context, roomID, playerName string) error {
	r.m.remove(queueKey{roomID, playerName})
	return nil
}

func (r *memoryConnectionRepo) ListByRoom(_ context.Context, roomID string) ([]*model.PlayerConnection, error) {
	conns := r.m.values(func(k queueKey) bool { return k.roomID == roomID })
	sort.Slice(conns, func(i, j int) bool { return conns[i].PlayerName < conns[j].PlayerName })
	return conns, nil
}
