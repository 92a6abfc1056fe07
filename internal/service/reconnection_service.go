package service

import (
	"context"
	"fmt"
	"time"

	"liaptui/internal/cache"
	"liaptui/internal/log"
	"liaptui/internal/model"
	"liaptui/internal/repository"
)

const DefaultDisconnectTimeout = 10 * time.Minute

// ReconnectionService owns the connected/disconnected state of players and
// is the only place queues are created for them or drained on their return.
type ReconnectionService struct {
	uow         repository.UnitOfWork
	publisher   EventPublisher
	locks       *RoomLocks
	queues      *MessageQueueService
	healthCache *cache.HealthCache
	staleAfter  time.Duration
	now         func() time.Time
}

func NewReconnectionService(
	uow repository.UnitOfWork,
	publisher EventPublisher,
	locks *RoomLocks,
	queues *MessageQueueService,
	staleAfter time.Duration,
) *ReconnectionService {
	if staleAfter <= 0 {
		staleAfter = model.DefaultStaleAfter
	}
	return &ReconnectionService{
		uow:        uow,
		publisher:  publisher,
		locks:      locks,
		queues:     queues,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

func (s *ReconnectionService) WithClock(now func() time.Time) *ReconnectionService {
	s.now = now
	return s
}

// WithHealthCache serves CachedConnectionHealth from c.
func (s *ReconnectionService) WithHealthCache(c *cache.HealthCache) *ReconnectionService {
	s.healthCache = c
	return s
}

func loadRoomAndPlayer(ctx context.Context, repos repository.Repositories, roomID, playerName string) (*model.Room, *model.Player, error) {
	room, err := repos.Rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	if room == nil {
		return nil, nil, model.ErrRoomNotFound
	}
	player := room.Player(playerName)
	if player == nil {
		return nil, nil, model.ErrPlayerNotFound
	}
	return room, player, nil
}

// HandleDisconnect marks the player offline. While a game is running the
// seat is handed to a bot when activateBot is set, and an empty queue is
// opened so events keep flowing to the player until they return.
func (s *ReconnectionService) HandleDisconnect(ctx context.Context, roomID, playerName string, activateBot bool) error {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	var batch []model.DomainEvent
	err := s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		batch, err = s.disconnectTx(ctx, repos, roomID, playerName, activateBot)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to handle disconnect: %w", err)
	}
	s.invalidateHealth(roomID)
	publish(ctx, s.publisher, batch)
	return nil
}

func (s *ReconnectionService) disconnectTx(ctx context.Context, repos repository.Repositories, roomID, playerName string, activateBot bool) ([]model.DomainEvent, error) {
	room, player, err := loadRoomAndPlayer(ctx, repos, roomID, playerName)
	if err != nil {
		return nil, err
	}
	game, err := repos.Games.GetByRoomID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	inProgress := game.IsActive()
	botActivated := player.Disconnect(now, activateBot && inProgress)

	conn, err := repos.Connections.Get(ctx, roomID, playerName)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		conn = &model.PlayerConnection{RoomID: roomID, PlayerName: playerName}
	}
	conn.MarkDisconnected(now)
	if err := repos.Connections.Save(ctx, conn); err != nil {
		return nil, err
	}

	if inProgress {
		if _, err := repos.MessageQueues.CreateQueue(ctx, roomID, playerName, s.queues.maxSize); err != nil {
			return nil, err
		}
	}

	room.UpdatedAt = now
	if err := repos.Rooms.Save(ctx, room); err != nil {
		return nil, err
	}

	log.Info("player %s disconnected from room %s (bot activated: %t, game in progress: %t)", playerName, roomID, botActivated, inProgress)
	return []model.DomainEvent{
		model.NewPlayerDisconnected(roomID, playerName, now, botActivated, inProgress),
	}, nil
}

// HandleReconnect binds the player to websocketID, hands their seat back
// from any bot and returns the missed messages followed by the current state.
func (s *ReconnectionService) HandleReconnect(ctx context.Context, roomID, playerName, websocketID string) (*model.ReconnectResult, error) {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	var (
		result *model.ReconnectResult
		batch  []model.DomainEvent
	)
	err := s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		room, player, err := loadRoomAndPlayer(ctx, repos, roomID, playerName)
		if err != nil {
			return err
		}

		now := s.now()
		botDeactivated := player.Reconnect()

		conn, err := repos.Connections.Get(ctx, roomID, playerName)
		if err != nil {
			return err
		}
		previous := ""
		if conn == nil {
			conn = &model.PlayerConnection{RoomID: roomID, PlayerName: playerName}
		} else if conn.IsConnected() && conn.WebsocketID != websocketID {
			previous = conn.WebsocketID
		}
		conn.MarkConnected(websocketID, now)
		if err := repos.Connections.Save(ctx, conn); err != nil {
			return err
		}

		msgs, delivered, err := s.queues.deliverTx(ctx, repos, roomID, playerName)
		if err != nil {
			return err
		}

		game, err := repos.Games.GetByRoomID(ctx, roomID)
		if err != nil {
			return err
		}

		room.UpdatedAt = now
		if err := repos.Rooms.Save(ctx, room); err != nil {
			return err
		}

		batch = append(delivered, model.NewPlayerReconnected(roomID, playerName, now, botDeactivated, len(msgs)))
		result = &model.ReconnectResult{
			QueuedMessages:      msgs,
			GameState:           game.Snapshot(),
			RoomState:           room.Snapshot(),
			PreviousWebsocketID: previous,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to handle reconnect: %w", err)
	}
	log.Info("player %s connected to room %s on %s, %d queued messages restored", playerName, roomID, websocketID, len(result.QueuedMessages))
	s.invalidateHealth(roomID)
	publish(ctx, s.publisher, batch)
	return result, nil
}

// HandleSessionClosed is the transport close hook. It disconnects the
// player only while websocketID is still their live session, so closing a
// replaced session does not knock out the new one.
func (s *ReconnectionService) HandleSessionClosed(ctx context.Context, roomID, playerName, websocketID string) (bool, error) {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	var (
		closed bool
		batch  []model.DomainEvent
	)
	err := s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		closed, batch = false, nil
		conn, err := repos.Connections.Get(ctx, roomID, playerName)
		if err != nil {
			return err
		}
		if conn == nil || !conn.IsConnected() || conn.WebsocketID != websocketID {
			return nil
		}
		batch, err = s.disconnectTx(ctx, repos, roomID, playerName, true)
		if err != nil {
			return err
		}
		closed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to handle session close: %w", err)
	}
	if closed {
		s.invalidateHealth(roomID)
	}
	publish(ctx, s.publisher, batch)
	return closed, nil
}

// RecordActivity stamps the player's session as alive.
func (s *ReconnectionService) RecordActivity(ctx context.Context, roomID, playerName string) error {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	return s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		conn, err := repos.Connections.Get(ctx, roomID, playerName)
		if err != nil {
			return err
		}
		if conn == nil {
			return model.ErrPlayerNotFound
		}
		conn.Touch(s.now())
		return repos.Connections.Save(ctx, conn)
	})
}

// CheckConnectionHealth classifies every connection in the room. A
// non-positive staleAfter uses the configured default.
func (s *ReconnectionService) CheckConnectionHealth(ctx context.Context, roomID string, staleAfter time.Duration) ([]model.ConnectionHealth, error) {
	if staleAfter <= 0 {
		staleAfter = s.staleAfter
	}
	var report []model.ConnectionHealth
	err := s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		room, err := repos.Rooms.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if room == nil {
			return model.ErrRoomNotFound
		}
		conns, err := repos.Connections.ListByRoom(ctx, roomID)
		if err != nil {
			return err
		}
		now := s.now()
		report = make([]model.ConnectionHealth, 0, len(conns))
		for _, c := range conns {
			report = append(report, model.ConnectionHealth{
				PlayerName:   c.PlayerName,
				Status:       c.Status,
				WebsocketID:  c.WebsocketID,
				LastActivity: c.LastActivity,
				Health:       c.Health(now, staleAfter),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check connection health: %w", err)
	}
	return report, nil
}

// CachedConnectionHealth is CheckConnectionHealth with the default
// threshold, answered from the health cache when a recent report exists.
func (s *ReconnectionService) CachedConnectionHealth(ctx context.Context, roomID string) ([]model.ConnectionHealth, error) {
	if s.healthCache == nil {
		return s.CheckConnectionHealth(ctx, roomID, 0)
	}
	if report, ok := s.healthCache.Get(roomID); ok {
		return report, nil
	}
	gen := s.healthCache.Generation(roomID)
	report, err := s.CheckConnectionHealth(ctx, roomID, 0)
	if err != nil {
		return nil, err
	}
	s.healthCache.Set(roomID, gen, report)
	return report, nil
}

func (s *ReconnectionService) invalidateHealth(roomID string) {
	if s.healthCache != nil {
		s.healthCache.Invalidate(roomID)
	}
}

// CleanupDisconnectedPlayers permanently removes players who have been gone
// longer than timeout, along with their queue and connection record.
func (s *ReconnectionService) CleanupDisconnectedPlayers(ctx context.Context, roomID string, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		timeout = DefaultDisconnectTimeout
	}
	unlock := s.locks.Lock(roomID)
	defer unlock()

	var batch []model.DomainEvent
	err := s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		batch = nil
		room, err := repos.Rooms.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if room == nil {
			return model.ErrRoomNotFound
		}
		game, err := repos.Games.GetByRoomID(ctx, roomID)
		if err != nil {
			return err
		}

		now := s.now()
		var expired []*model.Player
		for _, p := range room.Players {
			if p.DisconnectTime != nil && p.DisconnectedFor(now) > timeout {
				expired = append(expired, p)
			}
		}
		if len(expired) == 0 {
			return nil
		}

		for _, p := range expired {
			discarded := 0
			queue, err := repos.MessageQueues.GetQueue(ctx, roomID, p.Name)
			if err != nil {
				return err
			}
			if queue != nil {
				discarded = queue.Len()
				if err := repos.MessageQueues.ClearQueue(ctx, roomID, p.Name); err != nil {
					return err
				}
			}
			if err := repos.Connections.Delete(ctx, roomID, p.Name); err != nil {
				return err
			}
			if game.IsActive() {
				game.RemoveFromOrder(p.Name, now)
			}
			room.RemovePlayer(p.Name)
			batch = append(batch, model.NewPlayerRemoved(roomID, p.Name, now, p.DisconnectedFor(now), discarded))
		}

		if room.Player(room.HostName) == nil && len(room.Players) > 0 {
			room.HostName = room.PlayerNames()[0]
		}
		room.UpdatedAt = now
		if err := repos.Rooms.Save(ctx, room); err != nil {
			return err
		}
		if game.IsActive() {
			return repos.Games.Save(ctx, game)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clean up disconnected players: %w", err)
	}
	if len(batch) > 0 {
		log.Info("removed %d disconnected players from room %s", len(batch), roomID)
		s.invalidateHealth(roomID)
	}
	publish(ctx, s.publisher, batch)
	return len(batch), nil
}
