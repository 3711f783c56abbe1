package core

import (
	"context"
	"slices"
	"sync"
	"time"
)

// AuditAction names what a session did.
type AuditAction string

const (
	ActionIngest     AuditAction = "ingest"
	ActionAddUsed    AuditAction = "add_used"
	ActionRemoveUsed AuditAction = "remove_used"
	ActionExport     AuditAction = "export"
	ActionClear      AuditAction = "clear"
)

// AuditEntry is one line of a session's activity log. Table contents are
// never recorded, only their shape.
type AuditEntry struct {
	ID        string      `json:"id"`
	SessionID string      `json:"sessionId"`
	Action    AuditAction `json:"action"`
	Row       int         `json:"row,omitempty"`
	FileName  string      `json:"fileName,omitempty"`
	Rows      int         `json:"rows"`
	Columns   int         `json:"columns"`
	IPAddress string      `json:"ipAddress,omitempty"`
	UserAgent string      `json:"userAgent,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// AuditSink stores activity entries.
type AuditSink interface {
	Record(ctx context.Context, e AuditEntry) error
	// List returns a session's entries, newest first, at most limit of them.
	List(ctx context.Context, sessionID string, limit int) ([]AuditEntry, error)
}

// DefaultAuditMemoryLimit caps a MemoryAuditSink built with a non-positive limit.
const DefaultAuditMemoryLimit = 500

// MemoryAuditSink keeps the most recent entries across all sessions in a
// fixed-size ring.
type MemoryAuditSink struct {
	mu      sync.Mutex
	entries []AuditEntry
	next    int
	full    bool
}

func NewMemoryAuditSink(limit int) *MemoryAuditSink {
	if limit <= 0 {
		limit = DefaultAuditMemoryLimit
	}
	return &MemoryAuditSink{entries: make([]AuditEntry, limit)}
}

func (m *MemoryAuditSink) Record(_ context.Context, e AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[m.next] = e
	m.next = (m.next + 1) % len(m.entries)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

func (m *MemoryAuditSink) List(_ context.Context, sessionID string, limit int) ([]AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []AuditEntry
	// Walk backwards from the newest entry.
	n := m.next
	if m.full {
		n = len(m.entries)
	}
	for i := 1; i <= n; i++ {
		e := m.entries[(m.next-i+len(m.entries))%len(m.entries)]
		if e.SessionID != sessionID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return slices.Clip(out), nil
}
