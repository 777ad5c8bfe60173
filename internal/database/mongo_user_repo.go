package database

import (
	"context"
	"errors"
	"fmt"
	"time"
	"multipost-bot/internal/database/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const userCollectionName = "users"

// MongoUserRepository implements UserRepository for MongoDB.
type MongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new MongoDB user repository.
func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{
		collection: db.Collection(userCollectionName),
	}
}

// UpsertUser updates or creates a user record in the database.
func (r *MongoUserRepository) UpsertUser(ctx context.Context, userID int64, username, firstName, lastName string) error {
	now := time.Now()
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$set": bson.M{
			"username":   username,
			"first_name": firstName,
			"last_name":  lastName,
			"last_seen":  now,
		},
		"$setOnInsert": bson.M{
			"user_id":            userID,
			"plan":               models.PlanFree,
			"message_count":      0,
			"free_messages_used": 0,
			"first_seen":         now,
		},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", userID, err)
	}
	return nil
}

// GetUser returns the stored user, or nil if none exists.
func (r *MongoUserRepository) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user %d: %w", userID, err)
	}
	return &user, nil
}

// UserLanguage returns the user's stored language preference, or the empty
// string when no preference is recorded. Lookup errors fall back to empty.
func (r *MongoUserRepository) UserLanguage(ctx context.Context, userID int64) string {
	user, err := r.GetUser(ctx, userID)
	if err != nil || user == nil {
		return ""
	}
	return user.Language
}

// SetLanguage stores the user's preferred language code.
func (r *MongoUserRepository) SetLanguage(ctx context.Context, userID int64, lang string) error {
	filter := bson.M{"user_id": userID}
	update := bson.M{"$set": bson.M{"language": lang, "last_seen": time.Now()}}
	if _, err := r.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to set language for user %d: %w", userID, err)
	}
	return nil
}

// IncrementMessageCount bumps the total broadcast counter, and the free-tier
// counter as well when includeFree is set.
func (r *MongoUserRepository) IncrementMessageCount(ctx context.Context, userID int64, includeFree bool) error {
	inc := bson.M{"message_count": 1}
	if includeFree {
		inc["free_messages_used"] = 1
	}
	filter := bson.M{"user_id": userID}
	update := bson.M{"$inc": inc, "$set": bson.M{"last_seen": time.Now()}}
	if _, err := r.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to increment message count for user %d: %w", userID, err)
	}
	return nil
}
