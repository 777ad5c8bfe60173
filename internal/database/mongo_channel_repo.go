package database

import (
	"context"
	"fmt"
	"time"
	"multipost-bot/internal/database/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const channelCollectionName = "channels"

// MongoChannelRepository implements ChannelRepository for MongoDB.
type MongoChannelRepository struct {
	collection *mongo.Collection
}

// NewMongoChannelRepository creates a new MongoDB channel repository.
func NewMongoChannelRepository(db *mongo.Database) *MongoChannelRepository {
	return &MongoChannelRepository{
		collection: db.Collection(channelCollectionName),
	}
}

// ListByOwner returns all channel records for one owner, oldest first.
// The stable ordering is what fixes the dispatch and report order.
func (r *MongoChannelRepository) ListByOwner(ctx context.Context, ownerID int64) ([]models.Channel, error) {
	filter := bson.M{"owner_id": ownerID}
	findOptions := options.Find().SetSort(bson.D{{Key: "added_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to find channels for owner %d: %w", ownerID, err)
	}
	defer cursor.Close(ctx)

	var channels []models.Channel
	if err = cursor.All(ctx, &channels); err != nil {
		return nil, fmt.Errorf("failed to decode channels: %w", err)
	}
	return channels, nil
}

// Upsert creates or refreshes the record keyed by (owner, chat).
func (r *MongoChannelRepository) Upsert(ctx context.Context, channel *models.Channel) error {
	now := time.Now()
	filter := bson.M{"owner_id": channel.OwnerID, "chat_id": channel.ChatID}
	update := bson.M{
		"$set": bson.M{
			"title":        channel.Title,
			"username":     channel.Username,
			"type":         channel.Type,
			"member_count": channel.MemberCount,
			"is_active":    channel.IsActive,
			"can_post":     channel.CanPost,
			"updated_at":   now,
		},
		"$setOnInsert": bson.M{
			"owner_id": channel.OwnerID,
			"chat_id":  channel.ChatID,
			"added_at": now,
		},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert channel %d: %w", channel.ChatID, err)
	}
	return nil
}

// Deactivate marks every record for the given chat as inactive.
// Used when the bot is removed or banned from a destination.
func (r *MongoChannelRepository) Deactivate(ctx context.Context, chatID int64) error {
	filter := bson.M{"chat_id": chatID}
	update := bson.M{"$set": bson.M{"is_active": false, "updated_at": time.Now()}}
	if _, err := r.collection.UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to deactivate channel %d: %w", chatID, err)
	}
	return nil
}

// SetCanPost updates the posting-permission flag for one channel record.
func (r *MongoChannelRepository) SetCanPost(ctx context.Context, id primitive.ObjectID, canPost bool) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$set": bson.M{"can_post": canPost, "updated_at": time.Now()}}
	if _, err := r.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to update can_post for channel %s: %w", id.Hex(), err)
	}
	return nil
}
