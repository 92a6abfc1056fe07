package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"liaptui/internal/model"
)

type gameRepo struct {
	collection *mongo.Collection
}

func NewGameRepo(db *mongo.Database) GameRepo {
	return &gameRepo{
		collection: db.Collection("games"),
	}
}

func (r *gameRepo) GetByRoomID(ctx context.Context, roomID string) (*model.Game, error) {
	var game model.Game
	err := r.collection.FindOne(ctx, bson.M{"roomId": roomID}).Decode(&game)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find game for room %s: %w", roomID, err)
	}
	return &game, nil
}

func (r *gameRepo) Save(ctx context.Context, game *model.Game) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"roomId": game.RoomID}, game, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save game for room %s: %w", game.RoomID, err)
	}
	return nil
}

func (r *gameRepo) Delete(ctx context.Context, roomID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"roomId": roomID})
	return err
}
