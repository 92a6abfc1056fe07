package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// mongoUnitOfWork runs room, game and connection writes inside a Mongo
// transaction and flushes queue writes to the queue store once it commits.
// Transactions need Mongo to run as a replica set.
type mongoUnitOfWork struct {
	client      *mongo.Client
	rooms       RoomRepo
	games       GameRepo
	connections ConnectionRepo
	queues      QueueStore
}

func NewMongoUnitOfWork(client *mongo.Client, db *mongo.Database, queues QueueStore) UnitOfWork {
	return &mongoUnitOfWork{
		client:      client,
		rooms:       NewRoomRepo(db),
		games:       NewGameRepo(db),
		connections: NewConnectionRepo(db),
		queues:      queues,
	}
}

func (u *mongoUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	session, err := u.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	var staged *stagedQueueRepo
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		// WithTransaction may retry; start every attempt from a clean stage.
		staged = newStagedQueueRepo(u.queues, time.Now)
		return nil, fn(sc, Repositories{
			Rooms:         u.rooms,
			Games:         u.games,
			Connections:   u.connections,
			MessageQueues: staged,
		})
	})
	if err != nil {
		return err
	}

	if writes := staged.pending(); len(writes) > 0 {
		if err := u.queues.Apply(ctx, writes); err != nil {
			return fmt.Errorf("failed to flush message queues: %w", err)
		}
	}
	return nil
}
