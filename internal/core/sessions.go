package core

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the live binding between a username and one connection.
type Session struct {
	ID        string
	Username  string
	Client    *Client
	CreatedAt time.Time
}

// Sessions is the session registry. A username has at most one live session.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*Session // username -> session
}

// NewSessions creates an empty registry.
func NewSessions() *Sessions {
	return &Sessions{
		sessions: make(map[string]*Session),
	}
}

// Begin creates a session for username bound to c.
// The existence check and the insert happen under one lock.
func (s *Sessions) Begin(username string, c *Client) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[username]; exists {
		return nil, ErrAlreadyLoggedIn
	}
	sess := &Session{
		ID:        uuid.NewString(),
		Username:  username,
		Client:    c,
		CreatedAt: time.Now(),
	}
	s.sessions[username] = sess
	return sess, nil
}

// End removes the session for username if present. Idempotent.
func (s *Sessions) End(username string) {
	s.mu.Lock()
	delete(s.sessions, username)
	s.mu.Unlock()
}

// Release ends the session for username only if it belongs to c.
// It reports whether a session was removed.
func (s *Sessions) Release(username string, c *Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[username]
	if !ok || sess.Client != c {
		return false
	}
	delete(s.sessions, username)
	return true
}

// IsLoggedIn reports whether username has a live session.
func (s *Sessions) IsLoggedIn(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[username]
	return ok
}

// Lookup returns a copy of the session for username.
func (s *Sessions) Lookup(username string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[username]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// All returns a snapshot of active sessions ordered by username.
func (s *Sessions) All() []Session {
	s.mu.RLock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// Count returns the number of active sessions.
func (s *Sessions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
