package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultSessionIdleTimeout = 2 * time.Hour
	DefaultSessionMax         = 1000
)

// SessionStore maps session IDs to workspaces. Sessions that sit idle past
// the timeout are removed by Sweep; when the store is full the least recently
// seen session makes room for a new one.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	idle     time.Duration
	limit    int
	now      func() time.Time
}

type sessionEntry struct {
	ws       *Workspace
	lastSeen time.Time
}

func NewSessionStore(idle time.Duration, limit int) *SessionStore {
	if idle <= 0 {
		idle = DefaultSessionIdleTimeout
	}
	if limit <= 0 {
		limit = DefaultSessionMax
	}
	return &SessionStore{
		sessions: make(map[string]*sessionEntry),
		idle:     idle,
		limit:    limit,
		now:      time.Now,
	}
}

// Acquire returns the workspace for id, creating a session under a fresh ID
// when id is unknown, expired or not a UUID. The returned ID is the one the
// caller must use from now on.
func (s *SessionStore) Acquire(id string) (string, *Workspace, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.sessions[id]; ok && now.Sub(e.lastSeen) <= s.idle {
		e.lastSeen = now
		return id, e.ws, false
	}
	delete(s.sessions, id)

	if len(s.sessions) >= s.limit {
		s.evictOldestLocked()
	}
	id = uuid.NewString()
	e := &sessionEntry{ws: &Workspace{}, lastSeen: now}
	s.sessions[id] = e
	return id, e.ws, true
}

// Lookup returns the workspace for a live session without creating one.
func (s *SessionStore) Lookup(id string) (*Workspace, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok || s.now().Sub(e.lastSeen) > s.idle {
		return nil, false
	}
	e.lastSeen = s.now()
	return e.ws, true
}

func (s *SessionStore) Drop(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Sweep removes idle sessions and reports how many went.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, e := range s.sessions {
		if now.Sub(e.lastSeen) > s.idle {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) evictOldestLocked() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, e := range s.sessions {
		if oldestID == "" || e.lastSeen.Before(oldest) {
			oldestID, oldest = id, e.lastSeen
		}
	}
	delete(s.sessions, oldestID)
}
