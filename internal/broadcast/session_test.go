package broadcast

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemorySessionStoreLifecycle(t *testing.T) {
	store := NewMemorySessionStore()

	_, ok := store.Get(1)
	assert.False(t, ok)

	session := &Session{OwnerID: 42, ChatID: 1, State: StateCollecting}
	store.Set(1, session)

	got, ok := store.Get(1)
	assert.True(t, ok)
	assert.Same(t, session, got)

	// Replacing keeps one session per chat.
	replacement := &Session{OwnerID: 42, ChatID: 1, State: StateConfirming}
	store.Set(1, replacement)
	got, _ = store.Get(1)
	assert.Equal(t, StateConfirming, got.State)

	store.Delete(1)
	_, ok = store.Get(1)
	assert.False(t, ok)

	// Deleting again is a no-op.
	store.Delete(1)
}

func TestMemorySessionStoreConcurrentAccess(t *testing.T) {
	store := NewMemorySessionStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()
			store.Set(chatID, &Session{ChatID: chatID, State: StateCollecting})
			store.Get(chatID)
			store.Delete(chatID)
		}(int64(i))
	}
	wg.Wait()

	for i := 0; i < 50; i++ {
		_, ok := store.Get(int64(i))
		assert.False(t, ok)
	}
}
