package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"liaptui/internal/log"
	"liaptui/internal/model"
	"liaptui/internal/repository"
)

const maxNameLength = 20

// RoomCloser drops every live session of a room.
type RoomCloser interface {
	CloseRoom(roomID, reason string) int
}

// RoomService handles room lifecycle operations
type RoomService struct {
	uow        repository.UnitOfWork
	locks      *RoomLocks
	authSvc    *AuthService
	dispatcher *Dispatcher
	closer     RoomCloser
	now        func() time.Time
}

// NewRoomService creates a new room service
func NewRoomService(
	uow repository.UnitOfWork,
	locks *RoomLocks,
	authSvc *AuthService,
	dispatcher *Dispatcher,
	closer RoomCloser,
) *RoomService {
	return &RoomService{
		uow:        uow,
		locks:      locks,
		authSvc:    authSvc,
		dispatcher: dispatcher,
		closer:     closer,
		now:        time.Now,
	}
}

func (s *RoomService) WithClock(now func() time.Time) *RoomService {
	s.now = now
	return s
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return "", model.ErrInvalidName
	}
	return name, nil
}

// CreateRoom opens a room and seats the host in it.
func (s *RoomService) CreateRoom(ctx context.Context, hostName string, maxPlayers int) (*model.JoinResult, error) {
	hostName, err := normalizeName(hostName)
	if err != nil {
		return nil, err
	}
	if maxPlayers <= 0 {
		maxPlayers = model.DefaultMaxPlayers
	}

	var room *model.Room
	err = s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		code, err := s.generateRoomCode(ctx, repos.Rooms)
		if err != nil {
			return fmt.Errorf("failed to generate room code: %w", err)
		}
		now := s.now()
		room = &model.Room{
			ID:         code,
			HostName:   hostName,
			MaxPlayers: maxPlayers,
			Players:    []*model.Player{model.NewPlayer(hostName, 0, false, now)},
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return repos.Rooms.Save(ctx, room)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	log.Info("room %s created by %s", room.ID, hostName)
	return s.joinResult(room, room.Players[0])
}

// JoinRoom seats a player. Bots get no session token.
func (s *RoomService) JoinRoom(ctx context.Context, roomID, name string, isBot bool) (*model.JoinResult, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(roomID)
	defer unlock()

	var (
		room   *model.Room
		player *model.Player
	)
	err = s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		room, err = repos.Rooms.GetByID(ctx, roomID)
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
		if game.IsActive() {
			return model.ErrGameAlreadyStarted
		}
		if room.Player(name) != nil {
			return model.ErrNameTaken
		}
		if room.IsFull() {
			return model.ErrRoomFull
		}

		now := s.now()
		player = model.NewPlayer(name, room.NextSeat(), isBot, now)
		room.Players = append(room.Players, player)
		room.UpdatedAt = now
		return repos.Rooms.Save(ctx, room)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to join room: %w", err)
	}
	log.Info("player %s joined room %s at seat %d", name, roomID, player.Seat)
	return s.joinResult(room, player)
}

func (s *RoomService) joinResult(room *model.Room, player *model.Player) (*model.JoinResult, error) {
	result := &model.JoinResult{
		RoomID:     room.ID,
		PlayerName: player.Name,
		Seat:       player.Seat,
		Room:       room.Snapshot(),
	}
	if player.IsBot {
		return result, nil
	}
	token, err := s.authSvc.GeneratePlayerToken(room.ID, player.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	result.Token = token
	return result, nil
}

// GetRoom retrieves a room and its game
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*model.RoomDetails, error) {
	var details *model.RoomDetails
	err := s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
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
		details = &model.RoomDetails{Room: room.Snapshot(), Game: game.Snapshot()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// mutateGame runs fn on the room's game under the room lock and persists it.
func (s *RoomService) mutateGame(ctx context.Context, roomID string, fn func(room *model.Room, game *model.Game, now time.Time) (*model.Game, error)) (*model.GameSnapshot, error) {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	var snapshot *model.GameSnapshot
	err := s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
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
		game, err = fn(room, game, s.now())
		if err != nil {
			return err
		}
		snapshot = game.Snapshot()
		return repos.Games.Save(ctx, game)
	})
	return snapshot, err
}

// StartGame begins play with every seated player in seat order.
func (s *RoomService) StartGame(ctx context.Context, roomID string) (*model.GameSnapshot, error) {
	snapshot, err := s.mutateGame(ctx, roomID, func(room *model.Room, game *model.Game, now time.Time) (*model.Game, error) {
		if game.IsActive() {
			return nil, model.ErrGameAlreadyStarted
		}
		if len(room.Players) < 2 {
			return nil, model.ErrNotEnoughPlayers
		}
		game = model.NewGame(roomID, now)
		game.Start(room.PlayerNames(), now)
		return game, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start game: %w", err)
	}
	log.Info("game started in room %s", roomID)
	s.dispatch(ctx, roomID, "game_started", map[string]any{"game": snapshot}, true)
	return snapshot, nil
}

// AdvanceTurn passes the turn and tells every player whose turn it is.
func (s *RoomService) AdvanceTurn(ctx context.Context, roomID string) (*model.GameSnapshot, error) {
	snapshot, err := s.mutateGame(ctx, roomID, func(_ *model.Room, game *model.Game, now time.Time) (*model.Game, error) {
		if !game.IsActive() {
			return nil, model.ErrGameNotInProgress
		}
		game.AdvanceTurn(now)
		return game, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to advance turn: %w", err)
	}
	s.dispatch(ctx, roomID, "turn_changed", map[string]any{
		"currentPlayer": snapshot.CurrentPlayer,
		"roundNumber":   snapshot.RoundNumber,
		"turnNumber":    snapshot.TurnNumber,
	}, false)
	return snapshot, nil
}

// EndGame finishes the running game. The result is critical so offline
// players still receive it under queue pressure.
func (s *RoomService) EndGame(ctx context.Context, roomID string) (*model.GameSnapshot, error) {
	snapshot, err := s.mutateGame(ctx, roomID, func(_ *model.Room, game *model.Game, now time.Time) (*model.Game, error) {
		if !game.IsActive() {
			return nil, model.ErrGameNotInProgress
		}
		game.Finish(now)
		return game, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to end game: %w", err)
	}
	log.Info("game ended in room %s", roomID)
	s.dispatch(ctx, roomID, "game_ended", map[string]any{"game": snapshot}, true)
	return snapshot, nil
}

func (s *RoomService) dispatch(ctx context.Context, roomID, eventType string, data map[string]any, critical bool) {
	if s.dispatcher == nil {
		return
	}
	if _, err := s.dispatcher.DispatchToRoom(ctx, roomID, eventType, data, critical); err != nil {
		log.Error("dispatch %s to room %s: %v", eventType, roomID, err)
	}
}

// CloseRoom tears the room down with its game, connection records and
// queues, then drops its live sessions.
func (s *RoomService) CloseRoom(ctx context.Context, roomID string) error {
	unlock := s.locks.Lock(roomID)
	defer unlock()

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
		for _, q := range queues {
			if err := repos.MessageQueues.ClearQueue(ctx, roomID, q.PlayerName); err != nil {
				return err
			}
		}
		conns, err := repos.Connections.ListByRoom(ctx, roomID)
		if err != nil {
			return err
		}
		for _, c := range conns {
			if err := repos.Connections.Delete(ctx, roomID, c.PlayerName); err != nil {
				return err
			}
		}
		if err := repos.Games.Delete(ctx, roomID); err != nil {
			return err
		}
		return repos.Rooms.Delete(ctx, roomID)
	})
	if err != nil {
		return fmt.Errorf("failed to close room: %w", err)
	}
	if s.closer != nil {
		s.closer.CloseRoom(roomID, "room_closed")
	}
	log.Info("room %s closed", roomID)
	return nil
}

// generateRoomCode creates a 6-char alphanumeric code
func (s *RoomService) generateRoomCode(ctx context.Context, rooms repository.RoomRepo) (string, error) {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	const codeLen = 6

	for attempts := 0; attempts < 10; attempts++ {
		b := make([]byte, codeLen)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}

		code := make([]byte, codeLen)
		for i := range code {
			code[i] = chars[int(b[i])%len(chars)]
		}
		codeStr := string(code)

		existing, err := rooms.GetByID(ctx, codeStr)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return codeStr, nil
		}
	}

	return "", fmt.Errorf("failed to generate unique room code")
}
