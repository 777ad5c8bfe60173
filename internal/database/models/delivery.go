package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Delivery statuses.
const (
	DeliveryStatusPending = "pending"
	DeliveryStatusSent    = "sent"
	DeliveryStatusFailed  = "failed"
)

// Delivery stores the outcome of one (broadcast, channel) send attempt.
// A record is created in the pending state before the send and transitioned
// to sent or failed afterwards; it is never retried.
type Delivery struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	OwnerID           int64              `bson:"owner_id"`
	ChannelID         string             `bson:"channel_id"`
	Content           string             `bson:"content,omitempty"`
	Kind              string             `bson:"kind"`
	MediaCount        int                `bson:"media_count,omitempty"`
	Status            string             `bson:"status"`
	Error             string             `bson:"error,omitempty"`
	PlatformMessageID string             `bson:"platform_message_id,omitempty"`
	CreatedAt         time.Time          `bson:"created_at"`
	SentAt            time.Time          `bson:"sent_at,omitempty"`
}
