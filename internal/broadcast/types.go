package broadcast

import "context"

// MessageKind identifies the overall content type of an authored message.
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindPhoto    MessageKind = "photo"
	KindVideo    MessageKind = "video"
	KindDocument MessageKind = "document"
	KindAudio    MessageKind = "audio"
	KindGIF      MessageKind = "gif"
	KindSticker  MessageKind = "sticker"
	KindPoll     MessageKind = "poll"
	KindLocation MessageKind = "location"
)

// MediaKind tags an individual media reference within an authored message.
type MediaKind string

const (
	MediaPhoto     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaDocument  MediaKind = "document"
	MediaAudio     MediaKind = "audio"
	MediaVoice     MediaKind = "voice"
	MediaAnimation MediaKind = "animation"
	MediaSticker   MediaKind = "sticker"
)

// MediaRef is an opaque transport reference to one uploaded media item.
type MediaRef struct {
	FileID string
	Kind   MediaKind
}

// AuthoredMessage is the content a user wants broadcast.
// Media is empty when Kind is KindText; for media kinds it carries at least
// one reference, in the order the items arrived.
type AuthoredMessage struct {
	Text  string
	Kind  MessageKind
	Media []MediaRef
}

// Recipient is a destination eligible to receive a broadcast.
type Recipient struct {
	ID     string // directory record id
	Title  string
	ChatID int64 // transport address
}

// RecipientDirectory returns a user's destinations eligible for posting.
// The eligible set is re-read at dispatch time, never cached from session
// creation, so activation and permission changes made mid-session are honored.
type RecipientDirectory interface {
	ListEligible(ctx context.Context, ownerID int64) ([]Recipient, error)
}

// DeliveryRecordStore persists one record per (broadcast, recipient) attempt.
type DeliveryRecordStore interface {
	Create(ctx context.Context, ownerID int64, recipientID, content, kind string, mediaCount int) (recordID string, err error)
	MarkSent(ctx context.Context, recordID, transportMessageID string) error
	MarkFailed(ctx context.Context, recordID, errText string) error
}

// UsageAccounting tracks how many broadcasts an owner has consumed.
// IncrementSentCount is called at most once per completed broadcast.
type UsageAccounting interface {
	IncrementSentCount(ctx context.Context, ownerID int64) error
}

// UsageGate answers whether an owner may start another broadcast.
type UsageGate interface {
	// CanSend reports whether a broadcast may be started, along with the
	// free-tier usage so far (for the limit message).
	CanSend(ctx context.Context, ownerID int64) (allowed bool, used, limit int, err error)
}

// LanguageResolver resolves a user's stored language preference.
// An empty string means no preference is stored.
type LanguageResolver interface {
	UserLanguage(ctx context.Context, userID int64) string
}
