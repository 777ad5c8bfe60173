package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Channel is a destination (channel or group) attached by a user.
// Only channels with IsActive and CanPost are eligible for broadcasts.
type Channel struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	OwnerID     int64              `bson:"owner_id"`
	ChatID      int64              `bson:"chat_id"`
	Title       string             `bson:"title"`
	Username    string             `bson:"username,omitempty"`
	Type        string             `bson:"type"` // "channel", "group", "supergroup"
	MemberCount int                `bson:"member_count,omitempty"`
	IsActive    bool               `bson:"is_active"`
	CanPost     bool               `bson:"can_post"`
	AddedAt     time.Time          `bson:"added_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}
