package database

import (
	"context"
	"fmt"
	"time"
	"multipost-bot/internal/database/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const deliveryCollectionName = "deliveries"

// MongoDeliveryRepository implements DeliveryRepository for MongoDB.
type MongoDeliveryRepository struct {
	collection *mongo.Collection
}

// NewMongoDeliveryRepository creates a new MongoDB delivery record repository.
func NewMongoDeliveryRepository(db *mongo.Database) *MongoDeliveryRepository {
	return &MongoDeliveryRepository{
		collection: db.Collection(deliveryCollectionName),
	}
}

// Create inserts a pending delivery record and returns its id as a hex string.
func (r *MongoDeliveryRepository) Create(ctx context.Context, ownerID int64, channelID, content, kind string, mediaCount int) (string, error) {
	record := models.Delivery{
		ID:         primitive.NewObjectID(),
		OwnerID:    ownerID,
		ChannelID:  channelID,
		Content:    content,
		Kind:       kind,
		MediaCount: mediaCount,
		Status:     models.DeliveryStatusPending,
		CreatedAt:  time.Now(),
	}
	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		return "", fmt.Errorf("failed to insert delivery record: %w", err)
	}
	return record.ID.Hex(), nil
}

// MarkSent transitions a record to sent with the transport message id.
func (r *MongoDeliveryRepository) MarkSent(ctx context.Context, recordID, platformMessageID string) error {
	id, err := primitive.ObjectIDFromHex(recordID)
	if err != nil {
		return fmt.Errorf("invalid delivery record id %q: %w", recordID, err)
	}
	update := bson.M{"$set": bson.M{
		"status":              models.DeliveryStatusSent,
		"platform_message_id": platformMessageID,
		"sent_at":             time.Now(),
	}}
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("failed to mark delivery %s as sent: %w", recordID, err)
	}
	return nil
}

// MarkFailed transitions a record to failed with the captured error text.
func (r *MongoDeliveryRepository) MarkFailed(ctx context.Context, recordID, errText string) error {
	id, err := primitive.ObjectIDFromHex(recordID)
	if err != nil {
		return fmt.Errorf("invalid delivery record id %q: %w", recordID, err)
	}
	update := bson.M{"$set": bson.M{
		"status": models.DeliveryStatusFailed,
		"error":  errText,
	}}
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("failed to mark delivery %s as failed: %w", recordID, err)
	}
	return nil
}
