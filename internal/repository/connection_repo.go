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

type connectionRepo struct {
	collection *mongo.Collection
}

func NewConnectionRepo(db *mongo.Database) ConnectionRepo {
	return &connectionRepo{
		collection: db.Collection("connections"),
	}
}

func connectionFilter(roomID, playerName string) bson.M {
	return bson.M{"roomId": roomID, "playerName": playerName}
}

func (r *connectionRepo) Get(ctx context.Context, roomID, playerName string) (*model.PlayerConnection, error) {
	var conn model.PlayerConnection
	err := r.collection.FindOne(ctx, connectionFilter(roomID, playerName)).Decode(&conn)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find connection %s/%s: %w", roomID, playerName, err)
	}
	return &conn, nil
}

func (r *connectionRepo) Save(ctx context.Context, conn *model.PlayerConnection) error {
	_, err := r.collection.ReplaceOne(ctx, connectionFilter(conn.RoomID, conn.PlayerName), conn, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save connection %s/%s: %w", conn.RoomID, conn.PlayerName, err)
	}
	return nil
}

func (r *connectionRepo) Delete(ctx context.Context, roomID, playerName string) error {
	_, err := r.collection.DeleteOne(ctx, connectionFilter(roomID, playerName))
	return err
}

func (r *connectionRepo) ListByRoom(ctx context.Context, roomID string) ([]*model.PlayerConnection, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"roomId": roomID})
	if err != nil {
		return nil, fmt.Errorf("list connections for room %s: %w", roomID, err)
	}
	var conns []*model.PlayerConnection
	if err := cursor.All(ctx, &conns); err != nil {
		return nil, err
	}
	return conns, nil
}

// EnsureIndexes creates the lookup indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("connections").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "roomId", Value: 1}, {Key: "playerName", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("connections index: %w", err)
	}
	_, err = db.Collection("games").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "roomId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("games index: %w", err)
	}
	return nil
}
