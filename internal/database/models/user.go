package models

import "time"

// Subscription plans.
const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

// User represents a bot user with their subscription and usage information.
type User struct {
	UserID           int64     `bson:"user_id"`
	Username         string    `bson:"username,omitempty"`
	FirstName        string    `bson:"first_name,omitempty"`
	LastName         string    `bson:"last_name,omitempty"`
	Language         string    `bson:"language,omitempty"`
	Plan             string    `bson:"plan"`
	MessageCount     int       `bson:"message_count"`
	FreeMessagesUsed int       `bson:"free_messages_used"`
	FirstSeen        time.Time `bson:"first_seen"`
	LastSeen         time.Time `bson:"last_seen"`
}
