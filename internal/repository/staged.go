package repository

import (
	"context"
	"sort"
	"time"

	"liaptui/internal/model"
)

// QueueWrite is one pending change to a player queue. A nil Queue deletes it.
type QueueWrite struct {
	RoomID     string
	PlayerName string
	Queue      *model.PlayerQueue
}

// QueueStore is the committed home of player queues. Apply must make the
// whole batch visible at once.
type QueueStore interface {
	Get(ctx context.Context, roomID, playerName string) (*model.PlayerQueue, error)
	ListByRoom(ctx context.Context, roomID string) ([]*model.PlayerQueue, error)
	Apply(ctx context.Context, writes []QueueWrite) error
}

type queueKey struct {
	roomID     string
	playerName string
}

// stagedQueueRepo buffers queue writes for one unit of work and reads its
// own writes before falling back to the store.
type stagedQueueRepo struct {
	store  QueueStore
	now    func() time.Time
	writes map[queueKey]*model.PlayerQueue
	order  []queueKey
}

func newStagedQueueRepo(store QueueStore, now func() time.Time) *stagedQueueRepo {
	return &stagedQueueRepo{
		store:  store,
		now:    now,
		writes: make(map[queueKey]*model.PlayerQueue),
	}
}

func (r *stagedQueueRepo) stage(key queueKey, q *model.PlayerQueue) {
	if _, ok := r.writes[key]; !ok {
		r.order = append(r.order, key)
	}
	r.writes[key] = q
}

func (r *stagedQueueRepo) GetQueue(ctx context.Context, roomID, playerName string) (*model.PlayerQueue, error) {
	if q, ok := r.writes[queueKey{roomID, playerName}]; ok {
		return q.Clone(), nil
	}
	return r.store.Get(ctx, roomID, playerName)
}

func (r *stagedQueueRepo) CreateQueue(ctx context.Context, roomID, playerName string, maxSize int) (*model.PlayerQueue, error) {
	existing, err := r.GetQueue(ctx, roomID, playerName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	q := model.NewPlayerQueue(roomID, playerName, maxSize, r.now())
	r.stage(queueKey{roomID, playerName}, q.Clone())
	return q, nil
}

func (r *stagedQueueRepo) SaveQueue(_ context.Context, q *model.PlayerQueue) error {
	r.stage(queueKey{q.RoomID, q.PlayerName}, q.Clone())
	return nil
}

func (r *stagedQueueRepo) ClearQueue(_ context.Context, roomID, playerName string) error {
	r.stage(queueKey{roomID, playerName}, nil)
	return nil
}

func (r *stagedQueueRepo) ListByRoom(ctx context.Context, roomID string) ([]*model.PlayerQueue, error) {
	committed, err := r.store.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	byPlayer := make(map[string]*model.PlayerQueue, len(committed))
	for _, q := range committed {
		byPlayer[q.PlayerName] = q
	}
	for key, q := range r.writes {
		if key.roomID != roomID {
			continue
		}
		if q == nil {
			delete(byPlayer, key.playerName)
			continue
		}
		byPlayer[key.playerName] = q.Clone()
	}

	queues := make([]*model.PlayerQueue, 0, len(byPlayer))
	for _, q := range byPlayer {
		queues = append(queues, q)
	}
	sort.Slice(queues, func(i, j int) bool { return queues[i].PlayerName < queues[j].PlayerName })
	return queues, nil
}

// pending returns the staged writes in first-touch order.
func (r *stagedQueueRepo) pending() []QueueWrite {
	writes := make([]QueueWrite, 0, len(r.order))
	for _, key := range r.order {
		writes = append(writes, QueueWrite{
			RoomID:     key.roomID,
			PlayerName: key.playerName,
			Queue:      r.writes[key],
		})
	}
	return writes
}
