package memory

import (
	"sync"
	"time"
)

// maxRecentMemories is how many recently retrieved memories a session keeps
// for prompt annotation.
const maxRecentMemories = 3

// SessionState holds ephemeral per-conversation counters. It lives only in
// process memory: created on the first message of a session, discarded on
// Clear or process restart.
type SessionState struct {
	UserID          string
	MessageCount    int
	LastInteraction time.Time
	RecentMemories  []*Memory
}

// SessionTracker is a mutex-guarded in-memory session table. Access is
// serialized so concurrent chats against the same session cannot lose
// message-count increments.
type SessionTracker struct {
	mu       sync.RWMutex
	sessions map[string]*SessionState
}

// NewSessionTracker creates an empty tracker.
func NewSessionTracker() *SessionTracker {
	return &SessionTracker{
		sessions: make(map[string]*SessionState),
	}
}

// GetOrCreate returns a snapshot of the session, creating a zero-state entry
// on first access.
func (t *SessionTracker) GetOrCreate(sessionID, userID string) SessionState {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.sessions[sessionID]
	if !ok {
		state = &SessionState{UserID: userID}
		t.sessions[sessionID] = state
	}
	return snapshot(state)
}

// Touch increments the message count, updates the last-interaction time, and
// retains the most recently retrieved memories. It returns a snapshot of the
// updated state.
func (t *SessionTracker) Touch(sessionID, userID string, recent []*Memory) SessionState {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.sessions[sessionID]
	if !ok {
		state = &SessionState{UserID: userID}
		t.sessions[sessionID] = state
	}

	state.MessageCount++
	state.LastInteraction = time.Now()
	if len(recent) > maxRecentMemories {
		recent = recent[:maxRecentMemories]
	}
	state.RecentMemories = append([]*Memory(nil), recent...)

	return snapshot(state)
}

// Clear discards a session's state.
func (t *SessionTracker) Clear(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
}

// Len returns the number of live sessions.
func (t *SessionTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

func snapshot(state *SessionState) SessionState {
	out := *state
	out.RecentMemories = append([]*Memory(nil), state.RecentMemories...)
	return out
}
