package broadcast

import "sync"

// SessionState tracks where a broadcast conversation is in its lifecycle.
type SessionState string

const (
	// StateCollecting means the session is waiting for the message to broadcast.
	StateCollecting SessionState = "collecting"
	// StateConfirming means the message is captured and the recipient list was
	// shown; the session is waiting for the confirm or cancel action.
	StateConfirming SessionState = "confirming"
	// StateDispatching means the fan-out is running. The session never
	// survives a dispatch, whatever its outcome.
	StateDispatching SessionState = "dispatching"
)

// Session is the in-flight broadcast for one originating chat.
// At most one live session exists per chat at a time.
type Session struct {
	OwnerID int64
	ChatID  int64
	State   SessionState
	Message *AuthoredMessage
	// GroupID is the album currently buffering for this session, if any.
	GroupID string
}

// SessionStore maps an originating chat to its live broadcast session.
// It is the single source of truth for where a conversation is in the flow.
type SessionStore interface {
	Get(chatID int64) (*Session, bool)
	Set(chatID int64, session *Session)
	Delete(chatID int64)
}

// MemorySessionStore is the in-process SessionStore. Session state is
// volatile: a restart drops every live session.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[int64]*Session),
	}
}

// Get retrieves the live session for a chat, if one exists.
func (s *MemorySessionStore) Get(chatID int64) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[chatID]
	return session, ok
}

// Set stores the session for a chat, replacing any previous one.
func (s *MemorySessionStore) Set(chatID int64, session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[chatID] = session
}

// Delete removes the session for a chat. Deleting a missing session is a no-op.
func (s *MemorySessionStore) Delete(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
}
