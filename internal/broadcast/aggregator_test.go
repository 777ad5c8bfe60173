package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
)

// collectFinalized records finalize invocations for assertions.
type collectFinalized struct {
	mu       sync.Mutex
	chatIDs  []int64
	combined []*AuthoredMessage
}

func (c *collectFinalized) finalize(_ context.Context, chatID int64, combined *AuthoredMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chatIDs = append(c.chatIDs, chatID)
	c.combined = append(c.combined, combined)
}

func (c *collectFinalized) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.combined)
}

func albumPhoto(chatID int64, groupID, fileID, caption string) telego.Message {
	return telego.Message{
		Chat:         telego.Chat{ID: chatID},
		MediaGroupID: groupID,
		Caption:      caption,
		Photo:        []telego.PhotoSize{{FileID: fileID}},
	}
}

func TestAggregatorFinalizesOnceWithAllItems(t *testing.T) {
	sink := &collectFinalized{}
	agg := NewAggregator(20*time.Millisecond, DefaultMaxGroupSize, sink.finalize)

	agg.Add(albumPhoto(100, "g1", "p1", ""))
	agg.Add(albumPhoto(100, "g1", "p2", "the caption"))
	agg.Add(albumPhoto(100, "g1", "p3", ""))

	assert.Eventually(t, func() bool { return sink.calls() == 1 }, time.Second, 5*time.Millisecond)

	combined := sink.combined[0]
	assert.Equal(t, int64(100), sink.chatIDs[0])
	assert.Equal(t, KindPhoto, combined.Kind)
	// Caption comes from whichever item carries it, media keeps arrival order.
	assert.Equal(t, "the caption", combined.Text)
	if assert.Len(t, combined.Media, 3) {
		assert.Equal(t, "p1", combined.Media[0].FileID)
		assert.Equal(t, "p2", combined.Media[1].FileID)
		assert.Equal(t, "p3", combined.Media[2].FileID)
	}

	// No second firing for the same group.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, sink.calls())
}

func TestAggregatorDiscardSuppressesFinalize(t *testing.T) {
	sink := &collectFinalized{}
	agg := NewAggregator(20*time.Millisecond, DefaultMaxGroupSize, sink.finalize)

	agg.Add(albumPhoto(100, "g2", "p1", ""))
	agg.Discard("g2")

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, sink.calls())
}

func TestAggregatorDiscardUnknownGroupIsNoOp(t *testing.T) {
	agg := NewAggregator(20*time.Millisecond, DefaultMaxGroupSize, func(context.Context, int64, *AuthoredMessage) {})
	agg.Discard("never-seen")
}

func TestAggregatorIgnoresMessagesWithoutGroupID(t *testing.T) {
	sink := &collectFinalized{}
	agg := NewAggregator(20*time.Millisecond, DefaultMaxGroupSize, sink.finalize)

	agg.Add(telego.Message{Chat: telego.Chat{ID: 100}, Text: "not an album"})

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, sink.calls())
}

func TestAggregatorCapsGroupSize(t *testing.T) {
	sink := &collectFinalized{}
	agg := NewAggregator(20*time.Millisecond, 2, sink.finalize)

	agg.Add(albumPhoto(100, "g3", "p1", ""))
	agg.Add(albumPhoto(100, "g3", "p2", ""))
	agg.Add(albumPhoto(100, "g3", "p3", ""))

	assert.Eventually(t, func() bool { return sink.calls() == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, sink.combined[0].Media, 2)
}

func TestCombineSeparateGroupsStaySeparate(t *testing.T) {
	sink := &collectFinalized{}
	agg := NewAggregator(20*time.Millisecond, DefaultMaxGroupSize, sink.finalize)

	agg.Add(albumPhoto(100, "ga", "a1", ""))
	agg.Add(albumPhoto(200, "gb", "b1", ""))

	assert.Eventually(t, func() bool { return sink.calls() == 2 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []int64{100, 200}, sink.chatIDs)
}
