package service

import (
	"context"
	"fmt"
	"time"

	"liaptui/internal/log"
	"liaptui/internal/model"
	"liaptui/internal/repository"
)

// MessageQueueService buffers outbound events for disconnected players.
type MessageQueueService struct {
	uow       repository.UnitOfWork
	publisher EventPublisher
	locks     *RoomLocks
	maxSize   int
	now       func() time.Time
}

func NewMessageQueueService(uow repository.UnitOfWork, publisher EventPublisher, locks *RoomLocks, maxSize int) *MessageQueueService {
	if maxSize <= 0 {
		maxSize = model.DefaultQueueSize
	}
	return &MessageQueueService{
		uow:       uow,
		publisher: publisher,
		locks:     locks,
		maxSize:   maxSize,
		now:       time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *MessageQueueService) WithClock(now func() time.Time) *MessageQueueService {
	s.now = now
	return s
}

// QueueMessage buffers one event for an offline player, creating the queue
// if needed. A false result means the queue was full and the message dropped.
func (s *MessageQueueService) QueueMessage(ctx context.Context, roomID, playerName, eventType string, data map[string]any, critical bool) (bool, error) {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	var (
		added bool
		batch []model.DomainEvent
	)
	err := s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		added, batch, err = s.queueMessageTx(ctx, repos, roomID, playerName, eventType, data, critical)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to queue message: %w", err)
	}
	publish(ctx, s.publisher, batch)
	return added, nil
}

func (s *MessageQueueService) queueMessageTx(ctx context.Context, repos repository.Repositories, roomID, playerName, eventType string, data map[string]any, critical bool) (bool, []model.DomainEvent, error) {
	now := s.now()
	queue, err := repos.MessageQueues.CreateQueue(ctx, roomID, playerName, s.maxSize)
	if err != nil {
		return false, nil, err
	}

	added := queue.AddMessage(model.QueuedMessage{
		EventType:  eventType,
		Data:       data,
		Timestamp:  now,
		IsCritical: critical,
	})
	if !added {
		log.Warn("queue for %s in room %s is full, dropped %s", playerName, roomID, eventType)
		return false, []model.DomainEvent{
			model.NewMessageQueueOverflow(roomID, playerName, queue.CriticalCount(), queue.MaxSize, now),
		}, nil
	}

	if err := repos.MessageQueues.SaveQueue(ctx, queue); err != nil {
		return false, nil, err
	}
	return true, []model.DomainEvent{
		model.NewMessageQueued(roomID, playerName, eventType, critical, queue.Len(), now),
	}, nil
}

// DeliverMessages drains the player's queue and deletes it. A second call
// returns an empty slice.
func (s *MessageQueueService) DeliverMessages(ctx context.Context, roomID, playerName string) ([]model.QueuedMessage, error) {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	var (
		msgs  []model.QueuedMessage
		batch []model.DomainEvent
	)
	err := s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		msgs, batch, err = s.deliverTx(ctx, repos, roomID, playerName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to deliver messages: %w", err)
	}
	publish(ctx, s.publisher, batch)
	return msgs, nil
}

func (s *MessageQueueService) deliverTx(ctx context.Context, repos repository.Repositories, roomID, playerName string) ([]model.QueuedMessage, []model.DomainEvent, error) {
	queue, err := repos.MessageQueues.GetQueue(ctx, roomID, playerName)
	if err != nil {
		return nil, nil, err
	}
	if queue == nil {
		return []model.QueuedMessage{}, nil, nil
	}

	now := s.now()
	oldest := queue.OldestAge(now)
	critical := queue.CriticalCount()
	msgs := queue.Drain()
	if err := repos.MessageQueues.ClearQueue(ctx, roomID, playerName); err != nil {
		return nil, nil, err
	}
	if len(msgs) == 0 {
		return msgs, nil, nil
	}
	log.Info("delivered %d queued messages to %s in room %s", len(msgs), playerName, roomID)
	return msgs, []model.DomainEvent{
		model.NewQueuedMessagesDelivered(roomID, playerName, len(msgs), critical, oldest, now),
	}, nil
}

// GetQueueStats summarizes every queue in the room without changing them.
func (s *MessageQueueService) GetQueueStats(ctx context.Context, roomID string) (*model.QueueStats, error) {
	stats := &model.QueueStats{RoomID: roomID, PerPlayer: []model.PlayerQueueStats{}}
	err := s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		room, err := repos.Rooms.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if room == nil {
			return model.ErrRoomNotFound
		}
		queues, err := repos.MessageQueues.ListByRoom(ctx, roomID)
		if err != nil {
			return err
		}

		now := s.now()
		stats.TotalQueues = len(queues)
		stats.TotalMessages = 0
		stats.PerPlayer = stats.PerPlayer[:0]
		for _, q := range queues {
			stats.TotalMessages += q.Len()
			stats.PerPlayer = append(stats.PerPlayer, model.PlayerQueueStats{
				PlayerName:           q.PlayerName,
				QueueSize:            q.Len(),
				CriticalMessages:     q.CriticalCount(),
				OldestMessageAgeSecs: q.OldestAge(now).Seconds(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}
	return stats, nil
}

// DefaultMessageMaxAge applies when CleanupOldMessages is given no age.
const DefaultMessageMaxAge = 30 * time.Minute

// CleanupOldMessages drops, undelivered, every message in the room older
// than maxAge and returns how many were dropped.
func (s *MessageQueueService) CleanupOldMessages(ctx context.Context, roomID string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = DefaultMessageMaxAge
	}
	unlock := s.locks.Lock(roomID)
	defer unlock()

	var dropped int
	err := s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		dropped = 0
		room, err := repos.Rooms.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if room == nil {
			return model.ErrRoomNotFound
		}
		queues, err := repos.MessageQueues.ListByRoom(ctx, roomID)
		if err != nil {
			return err
		}

		cutoff := s.now().Add(-maxAge)
		for _, q := range queues {
			n := q.DropOlderThan(cutoff)
			if n == 0 {
				continue
			}
			if err := repos.MessageQueues.SaveQueue(ctx, q); err != nil {
				return err
			}
			dropped += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clean up messages: %w", err)
	}
	if dropped > 0 {
		log.Info("dropped %d expired queued messages in room %s", dropped, roomID)
	}
	return dropped, nil
}

// PrioritizeCriticalMessages moves critical messages to the front of the
// player's queue, keeping order within each class.
func (s *MessageQueueService) PrioritizeCriticalMessages(ctx context.Context, roomID, playerName string) error {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	err := s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		queue, err := repos.MessageQueues.GetQueue(ctx, roomID, playerName)
		if err != nil {
			return err
		}
		if queue == nil {
			return model.ErrQueueNotFound
		}
		if queue.Len() <= 1 {
			return nil
		}
		queue.PrioritizeCritical()
		return repos.MessageQueues.SaveQueue(ctx, queue)
	})
	if err != nil {
		return fmt.Errorf("failed to prioritize messages: %w", err)
	}
	return nil
}
