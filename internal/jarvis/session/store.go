// Package session implements the per-user conversational session store and
// the reaper that expires abandoned sessions.
//
// Each plugin that holds multi-turn conversations owns its own Store, keyed
// by the client's unique identifier. All mutation goes through the store's
// mutex; the per-key access discipline (only the acting user's entry is ever
// touched by a handler) keeps contention trivial.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrActive is returned by Begin when the owner already has a session.
var ErrActive = errors.New("session already active")

// Session is one user's in-progress multi-step interaction.
type Session struct {
	// ID is a random identifier used for identity-checked removal, so a
	// reaper scan never removes a session that was completed and restarted
	// between snapshot and delete.
	ID string
	// OwnerUID is the stable unique identifier of the owning client.
	OwnerUID string
	// ClientID is the owner's connection id, kept for expiry notices.
	ClientID int
	// Nickname is the owner's display name at session start.
	Nickname string
	// State is the wizard state tag, owned by the plugin. Transitions must
	// go through Store.SetState.
	State string
	// CreatedAt is when the session was started.
	CreatedAt time.Time
	// Data holds plugin-specific collected state.
	Data any
}

// Age returns how long the session has existed as of now.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// Store is a keyed map of active sessions, one per owner.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Begin creates a session for the owner. A second session for the same owner
// is rejected with ErrActive; callers decide whether that means "busy" or
// "treat the message as wizard input".
func (st *Store) Begin(ownerUID string, clientID int, nickname, state string, data any) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[ownerUID]; ok {
		return nil, ErrActive
	}

	s := &Session{
		ID:        uuid.NewString(),
		OwnerUID:  ownerUID,
		ClientID:  clientID,
		Nickname:  nickname,
		State:     state,
		CreatedAt: time.Now(),
		Data:      data,
	}
	st.sessions[ownerUID] = s
	return s, nil
}

// Get returns the owner's active session, if any.
func (st *Store) Get(ownerUID string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[ownerUID]
	return s, ok
}

// Has reports whether the owner has an active session.
func (st *Store) Has(ownerUID string) bool {
	_, ok := st.Get(ownerUID)
	return ok
}

// SetState moves the owner's session to a new state, only when its id still
// matches, and reports whether the transition happened. All State mutation
// goes through here so the reaper's expiry snapshot never observes a
// half-written transition.
func (st *Store) SetState(ownerUID, id, state string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[ownerUID]
	if !ok || s.ID != id {
		return false
	}
	s.State = state
	return true
}

// End removes the owner's session unconditionally.
func (st *Store) End(ownerUID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, ownerUID)
}

// EndIfMatch removes the owner's session only when its id still matches,
// and reports whether a removal happened.
func (st *Store) EndIfMatch(ownerUID, id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[ownerUID]
	if !ok || s.ID != id {
		return false
	}
	delete(st.sessions, ownerUID)
	return true
}

// Expired returns copies of sessions whose age exceeds maxAge at now. The
// copies are taken under the store lock so the reaper never reads fields a
// handler is mutating; Data is a shared pointer and must not be touched by
// reaper callbacks.
func (st *Store) Expired(now time.Time, maxAge time.Duration) []*Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	var expired []*Session
	for _, s := range st.sessions {
		if s.Age(now) > maxAge {
			snap := *s
			expired = append(expired, &snap)
		}
	}
	return expired
}

// Len returns the number of active sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
