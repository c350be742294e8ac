package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/huligan-sport/wb-price-bot/internal/models"
)

// Store persists user registries in a MongoDB collection, one document per
// chat keyed by chatId. Saves are full-document upserts: either the whole
// post-operation record lands or nothing does.
type Store struct {
	client   *mongo.Client
	users    *mongo.Collection
	validate *validator.Validate
}

func New(ctx context.Context, uri, database, collection string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	users := client.Database(database).Collection(collection)
	_, err = users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "chatId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create chatId index: %w", err)
	}

	slog.Info("Connected to MongoDB", "database", database, "collection", collection)
	return &Store{
		client:   client,
		users:    users,
		validate: validator.New(),
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// LoadUser fetches one chat's registry. Absence is empty-state, never an error.
func (s *Store) LoadUser(ctx context.Context, chatID int64) (*models.UserRecord, error) {
	var rec models.UserRecord
	err := s.users.FindOne(ctx, bson.M{"chatId": chatID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", chatID, err)
	}
	return &rec, nil
}

// LoadAllUsers fetches every chat's registry keyed by chat ID.
func (s *Store) LoadAllUsers(ctx context.Context) (map[int64]*models.UserRecord, error) {
	cursor, err := s.users.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	defer cursor.Close(ctx)

	records := make(map[int64]*models.UserRecord)
	for cursor.Next(ctx) {
		var rec models.UserRecord
		if err := cursor.Decode(&rec); err != nil {
			// One malformed document must not take down every schedule.
			slog.Warn("Skipping undecodable user record", "error", err)
			continue
		}
		records[rec.ChatID] = &rec
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	return records, nil
}

// SaveUser upserts the chat's full registry. The record is validated first so
// a malformed registry never reaches the collection.
func (s *Store) SaveUser(ctx context.Context, rec *models.UserRecord) error {
	if err := s.validate.Struct(rec); err != nil {
		return fmt.Errorf("user record %d failed validation: %w", rec.ChatID, err)
	}
	_, err := s.users.ReplaceOne(ctx, bson.M{"chatId": rec.ChatID}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save user %d: %w", rec.ChatID, err)
	}
	return nil
}

// DeleteUser removes the chat's registry. Deleting an absent record is a no-op.
func (s *Store) DeleteUser(ctx context.Context, chatID int64) error {
	_, err := s.users.DeleteOne(ctx, bson.M{"chatId": chatID})
	if err != nil {
		return fmt.Errorf("delete user %d: %w", chatID, err)
	}
	return nil
}
