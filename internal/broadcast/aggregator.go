package broadcast

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mymmrac/telego"
)

const (
	// DefaultFinalizeDelay is how long an album buffer stays open after its
	// first item before it is coalesced. Telegram delivers the parts of one
	// client-side album within well under a second of each other.
	DefaultFinalizeDelay = 1 * time.Second
	// DefaultMaxGroupSize limits the number of items stored per album.
	DefaultMaxGroupSize = 10
)

// FinalizeFunc receives the combined message for a completed album.
type FinalizeFunc func(ctx context.Context, chatID int64, combined *AuthoredMessage)

type groupBuffer struct {
	chatID int64
	items  []telego.Message
	timer  *time.Timer
	mu     sync.Mutex
}

// Aggregator buffers the near-simultaneous parts of an album upload and
// coalesces them, one debounce window after the first part, into a single
// AuthoredMessage carrying all media references.
type Aggregator struct {
	groups   sync.Map // map[string]*groupBuffer
	delay    time.Duration
	maxSize  int
	finalize FinalizeFunc
}

// NewAggregator creates a media group aggregator. finalize is invoked exactly
// once per album, from a timer goroutine, with the combined message.
func NewAggregator(delay time.Duration, maxSize int, finalize FinalizeFunc) *Aggregator {
	if delay <= 0 {
		delay = DefaultFinalizeDelay
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxGroupSize
	}
	return &Aggregator{
		delay:    delay,
		maxSize:  maxSize,
		finalize: finalize,
	}
}

// Add stores one album item. The first item of a group opens the buffer and
// schedules the single finalize callback; later items of the same group are
// appended in arrival order. Messages without a MediaGroupID are ignored.
func (a *Aggregator) Add(message telego.Message) {
	groupID := message.MediaGroupID
	if groupID == "" {
		return
	}

	val, _ := a.groups.LoadOrStore(groupID, &groupBuffer{
		chatID: message.Chat.ID,
		items:  make([]telego.Message, 0, a.maxSize),
	})
	buf := val.(*groupBuffer)

	buf.mu.Lock()
	if len(buf.items) < a.maxSize {
		buf.items = append(buf.items, message)
	} else {
		log.Printf("[Aggregator Group:%s] Group limit (%d) reached, message %d dropped.", groupID, a.maxSize, message.MessageID)
	}
	if buf.timer == nil {
		buf.timer = time.AfterFunc(a.delay, func() { a.fire(groupID) })
	}
	buf.mu.Unlock()
}

// Discard drops a pending buffer so its scheduled finalize becomes a no-op.
// Used when the owning session is cancelled while an album is still buffering.
func (a *Aggregator) Discard(groupID string) {
	val, loaded := a.groups.LoadAndDelete(groupID)
	if !loaded {
		return
	}
	buf := val.(*groupBuffer)
	buf.mu.Lock()
	if buf.timer != nil {
		buf.timer.Stop()
		buf.timer = nil
	}
	buf.mu.Unlock()
}

// fire runs when the debounce window closes. The LoadAndDelete guard makes
// finalize a no-op for buffers that were discarded in the meantime.
func (a *Aggregator) fire(groupID string) {
	val, loaded := a.groups.LoadAndDelete(groupID)
	if !loaded {
		return
	}
	buf := val.(*groupBuffer)

	buf.mu.Lock()
	items := make([]telego.Message, len(buf.items))
	copy(items, buf.items)
	buf.mu.Unlock()

	if len(items) == 0 {
		log.Printf("[Aggregator Group:%s] Timer fired, but group was empty.", groupID)
		return
	}

	log.Printf("[Aggregator Group:%s] Finalizing %d item(s).", groupID, len(items))
	a.finalize(context.Background(), buf.chatID, Combine(items))
}

// Combine flattens album items into one AuthoredMessage: the kind comes from
// the first item, the shared text from the first item that carries a caption
// (not necessarily the first received), and the media references keep their
// arrival order.
func Combine(items []telego.Message) *AuthoredMessage {
	combined := &AuthoredMessage{
		Kind: detectKind(items[0]),
	}
	for _, item := range items {
		if combined.Text == "" {
			combined.Text = extractText(item)
		}
		combined.Media = append(combined.Media, extractMedia(item)...)
	}
	return combined
}
