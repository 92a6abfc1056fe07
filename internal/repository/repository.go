package repository

import (
	"context"

	"liaptui/internal/model"
)

// Getters return (nil, nil) when the record does not exist; services decide
// whether that is an error.

type RoomRepo interface {
	GetByID(ctx context.Context, id string) (*model.Room, error)
	Save(ctx context.Context, room *model.Room) error
	Delete(ctx context.Context, id string) error
	ListIDs(ctx context.Context) ([]string, error)
}

type GameRepo interface {
	GetByRoomID(ctx context.Context, roomID string) (*model.Game, error)
	Save(ctx context.Context, game *model.Game) error
	Delete(ctx context.Context, roomID string) error
}

type ConnectionRepo interface {
	Get(ctx context.Context, roomID, playerName string) (*model.PlayerConnection, error)
	Save(ctx context.Context, conn *model.PlayerConnection) error
	Delete(ctx context.Context, roomID, playerName string) error
	ListByRoom(ctx context.Context, roomID string) ([]*model.PlayerConnection, error)
}

type MessageQueueRepo interface {
	GetQueue(ctx context.Context, roomID, playerName string) (*model.PlayerQueue, error)
	// CreateQueue returns the existing queue when there is one.
	CreateQueue(ctx context.Context, roomID, playerName string, maxSize int) (*model.PlayerQueue, error)
	SaveQueue(ctx context.Context, queue *model.PlayerQueue) error
	ClearQueue(ctx context.Context, roomID, playerName string) error
	ListByRoom(ctx context.Context, roomID string) ([]*model.PlayerQueue, error)
}

// Repositories is the set of repositories bound to one unit of work.
type Repositories struct {
	Rooms         RoomRepo
	Games         GameRepo
	Connections   ConnectionRepo
	MessageQueues MessageQueueRepo
}

// UnitOfWork scopes a group of repository calls to one transaction. Writes
// commit together when fn returns nil and are discarded otherwise. Backends
// may run fn more than once on transient conflicts, so fn must not keep side
// effects outside the repositories it is given.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
