package database

import (
	"context"
	"multipost-bot/internal/database/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChannelRepository defines the interface for destination channel records.
type ChannelRepository interface {
	// ListByOwner returns all channels attached by a user, oldest first.
	ListByOwner(ctx context.Context, ownerID int64) ([]models.Channel, error)
	// Upsert creates or refreshes a channel record keyed by (owner, chat).
	Upsert(ctx context.Context, channel *models.Channel) error
	// Deactivate marks every record for the given chat as inactive.
	Deactivate(ctx context.Context, chatID int64) error
	// SetCanPost updates the posting-permission flag for one channel record.
	SetCanPost(ctx context.Context, id primitive.ObjectID, canPost bool) error
}

// DeliveryRepository defines the interface for delivery records,
// one per (broadcast, channel) pair.
type DeliveryRepository interface {
	// Create inserts a pending delivery record and returns its id.
	Create(ctx context.Context, ownerID int64, channelID, content, kind string, mediaCount int) (string, error)
	// MarkSent transitions a record to sent with the transport message id.
	MarkSent(ctx context.Context, recordID, platformMessageID string) error
	// MarkFailed transitions a record to failed with the captured error text.
	MarkFailed(ctx context.Context, recordID, errText string) error
}

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	// UpsertUser updates or creates a user record in the database.
	UpsertUser(ctx context.Context, userID int64, username, firstName, lastName string) error
	// GetUser returns the stored user, or nil if none exists.
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	// SetLanguage stores the user's preferred language code.
	SetLanguage(ctx context.Context, userID int64, lang string) error
	// UserLanguage returns the stored language preference, or "" when unset.
	UserLanguage(ctx context.Context, userID int64) string
	// IncrementMessageCount bumps the total broadcast counter, and the
	// free-tier counter as well when includeFree is set.
	IncrementMessageCount(ctx context.Context, userID int64, includeFree bool) error
}

// UserActionLogger defines the interface for logging user actions.
type UserActionLogger interface {
	// LogUserAction logs an action performed by a user.
	LogUserAction(userID int64, action string, details interface{}) error
}
