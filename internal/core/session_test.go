package core

import (
	"testing"
	"time"
)

// fakeClock is a settable time source for SessionStore.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(idle time.Duration, limit int) (*SessionStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewSessionStore(idle, limit)
	s.now = clock.Now
	return s, clock
}

func TestSessionStore_AcquireIssuesNewID(t *testing.T) {
	s, _ := newTestStore(time.Hour, 10)

	id, ws, created := s.Acquire("")
	if !created || id == "" || ws == nil {
		t.Fatalf("Acquire(\"\") = %q, %v, %v", id, ws, created)
	}

	again, ws2, created := s.Acquire(id)
	if created || again != id || ws2 != ws {
		t.Errorf("Acquire(known) = %q, created=%v; want same session", again, created)
	}
}

func TestSessionStore_UnknownIDIsReplaced(t *testing.T) {
	s, _ := newTestStore(time.Hour, 10)

	id, _, created := s.Acquire("attacker-chosen")
	if !created {
		t.Fatal("Acquire(unknown) created = false")
	}
	if id == "attacker-chosen" {
		t.Error("Acquire adopted a client-chosen session ID")
	}
}

func TestSessionStore_Expiry(t *testing.T) {
	s, clock := newTestStore(time.Hour, 10)
	id, _, _ := s.Acquire("")

	clock.Advance(59 * time.Minute)
	if _, ok := s.Lookup(id); !ok {
		t.Fatal("session expired before idle timeout")
	}

	// Lookup refreshed lastSeen, so the hour restarts here.
	clock.Advance(61 * time.Minute)
	if _, ok := s.Lookup(id); ok {
		t.Error("Lookup found a session past idle timeout")
	}

	fresh, _, created := s.Acquire(id)
	if !created || fresh == id {
		t.Errorf("Acquire(expired) = %q, created=%v; want new session", fresh, created)
	}
}

func TestSessionStore_Sweep(t *testing.T) {
	s, clock := newTestStore(time.Hour, 10)
	old, _, _ := s.Acquire("")
	clock.Advance(30 * time.Minute)
	young, _, _ := s.Acquire("")
	clock.Advance(45 * time.Minute)

	if got := s.Sweep(); got != 1 {
		t.Errorf("Sweep() = %d, want 1", got)
	}
	if _, ok := s.Lookup(old); ok {
		t.Error("old session survived Sweep")
	}
	if _, ok := s.Lookup(young); !ok {
		t.Error("young session removed by Sweep")
	}
	if got := s.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestSessionStore_EvictsLeastRecentlySeen(t *testing.T) {
	s, clock := newTestStore(time.Hour, 2)

	first, _, _ := s.Acquire("")
	clock.Advance(time.Minute)
	second, _, _ := s.Acquire("")
	clock.Advance(time.Minute)
	s.Lookup(first)
	clock.Advance(time.Minute)

	third, _, _ := s.Acquire("")

	if got := s.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
	if _, ok := s.Lookup(second); ok {
		t.Error("least recently seen session was kept")
	}
	for _, id := range []string{first, third} {
		if _, ok := s.Lookup(id); !ok {
			t.Errorf("session %s evicted", id)
		}
	}
}

func TestSessionStore_Drop(t *testing.T) {
	s, _ := newTestStore(time.Hour, 10)
	id, _, _ := s.Acquire("")

	s.Drop(id)
	if _, ok := s.Lookup(id); ok {
		t.Error("Lookup found a dropped session")
	}
}
