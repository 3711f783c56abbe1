package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/sheetmark/internal/config"
	"github.com/JonMunkholm/sheetmark/internal/logging"
	"github.com/google/uuid"
)

// ErrSessionExpired is returned when a session disappears between the
// request starting and the operation running.
var ErrSessionExpired = errors.New("session expired")

// Service owns every session's table and implements the user operations:
// ingest a file, mark and unmark rows, export, clear.
type Service struct {
	decoder       Decoder
	annotator     Annotator
	exporter      Exporter
	sessions      *SessionStore
	limiter       *DecodeLimiter
	audit         AuditSink
	decodeTimeout time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithDecoder replaces the spreadsheet decoder.
func WithDecoder(d Decoder) Option {
	return func(s *Service) { s.decoder = d }
}

// NewService builds a service from cfg. A nil audit sink selects an
// in-memory one sized by AUDIT_MEMORY_LIMIT.
func NewService(cfg *config.Config, audit AuditSink, opts ...Option) (*Service, error) {
	policy, err := ParsePolicy(cfg.Table.AnnotationPolicy)
	if err != nil {
		return nil, err
	}
	quoting, err := ParseQuoting(cfg.Table.ExportQuoting)
	if err != nil {
		return nil, err
	}
	if audit == nil {
		audit = NewMemoryAuditSink(cfg.Audit.MemoryLimit)
	}

	s := &Service{
		decoder:       NewDecoder(),
		annotator:     NewAnnotator(policy),
		exporter:      Exporter{Quoting: quoting},
		sessions:      NewSessionStore(cfg.Session.IdleTimeout, cfg.Session.MaxSessions),
		limiter:       NewDecodeLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		audit:         audit,
		decodeTimeout: cfg.Upload.Timeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// View is what a client renders: the table plus per-row Used flags.
type View struct {
	SessionID string
	FileName  string
	Version   int
	Policy    Policy
	Table     Table
	// Used[i] reports whether data row i+1 carries the Used marker.
	Used []bool
	// Changed is false when the operation left the table as it was.
	Changed bool
}

// Session returns a live session ID for id, starting a new session when id
// is unknown or expired. created reports whether the ID changed.
func (s *Service) Session(id string) (sessionID string, created bool) {
	sessionID, _, created = s.sessions.Acquire(id)
	return sessionID, created
}

// View returns the current state of a session.
func (s *Service) View(sessionID string) View {
	ws, ok := s.sessions.Lookup(sessionID)
	if !ok {
		return View{SessionID: sessionID, Policy: s.annotator.Policy()}
	}
	return s.view(sessionID, ws.Snapshot(), false)
}

// Ingest decodes data and, on success, replaces the session's table with the
// first sheet. On any failure the previous table is kept.
func (s *Service) Ingest(ctx context.Context, sessionID, fileName string, data []byte) (View, error) {
	ws, err := s.workspace(sessionID)
	if err != nil {
		return View{}, err
	}
	logger := logging.WithFields(ctx, "file", fileName, "bytes", len(data))

	if err := s.limiter.Acquire(ctx); err != nil {
		logger.Warn("decode slot unavailable", "error", err)
		return View{}, err
	}
	defer s.limiter.Release()

	decodeCtx, cancel := context.WithTimeout(ctx, s.decodeTimeout)
	defer cancel()

	start := time.Now()
	table, err := s.decoder.Decode(decodeCtx, fileName, data)
	if err != nil {
		logger.Warn("decode failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return View{}, fmt.Errorf("ingest: %w", err)
	}

	snap := ws.Replace(table, fileName)
	logger.Info("table loaded",
		"rows", table.DataLen(),
		"columns", table.Width(),
		"version", snap.Version,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.record(ctx, sessionID, ActionIngest, 0, snap)
	return s.view(sessionID, snap, true), nil
}

// AddUsed marks data row row (1-based) as used.
func (s *Service) AddUsed(ctx context.Context, sessionID string, row int) (View, error) {
	return s.annotate(ctx, sessionID, row, ActionAddUsed, s.annotator.AddUsed)
}

// RemoveUsed clears the marker on data row row (1-based). A row without the
// marker is left alone and the returned View has Changed false.
func (s *Service) RemoveUsed(ctx context.Context, sessionID string, row int) (View, error) {
	return s.annotate(ctx, sessionID, row, ActionRemoveUsed, s.annotator.RemoveUsed)
}

func (s *Service) annotate(ctx context.Context, sessionID string, row int, action AuditAction,
	fn func(Table, int) (Table, bool, error)) (View, error) {
	ws, err := s.workspace(sessionID)
	if err != nil {
		return View{}, err
	}

	snap, changed, err := ws.Update(func(t Table) (Table, bool, error) {
		return fn(t, row)
	})
	if err != nil {
		return View{}, fmt.Errorf("%s row %d: %w", action, row, err)
	}

	if changed {
		logging.FromContext(ctx).Debug("row annotated", "action", action, "row", row, "version", snap.Version)
		s.record(ctx, sessionID, action, row, snap)
	}
	return s.view(sessionID, snap, changed), nil
}

// Export writes the session's table as CSV. An empty table writes nothing.
func (s *Service) Export(ctx context.Context, sessionID string, w io.Writer) error {
	ws, err := s.workspace(sessionID)
	if err != nil {
		return err
	}

	snap := ws.Snapshot()
	if err := s.exporter.WriteCSV(w, snap.Table); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	s.record(ctx, sessionID, ActionExport, 0, snap)
	return nil
}

// Clear drops the session's table.
func (s *Service) Clear(ctx context.Context, sessionID string) (View, error) {
	ws, err := s.workspace(sessionID)
	if err != nil {
		return View{}, err
	}
	snap := ws.Reset()
	s.record(ctx, sessionID, ActionClear, 0, snap)
	return s.view(sessionID, snap, true), nil
}

// Activity lists the session's most recent activity, newest first.
func (s *Service) Activity(ctx context.Context, sessionID string, limit int) ([]AuditEntry, error) {
	return s.audit.List(ctx, sessionID, limit)
}

func (s *Service) Policy() Policy { return s.annotator.Policy() }

func (s *Service) SessionCount() int { return s.sessions.Len() }

func (s *Service) DecodeStatus() DecodeLimiterStatus { return s.limiter.Status() }

// WaitForDecodes blocks until in-flight decodes finish or ctx is done.
func (s *Service) WaitForDecodes(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) workspace(sessionID string) (*Workspace, error) {
	ws, ok := s.sessions.Lookup(sessionID)
	if !ok {
		return nil, ErrSessionExpired
	}
	return ws, nil
}

func (s *Service) view(sessionID string, snap Snapshot, changed bool) View {
	used := make([]bool, snap.Table.DataLen())
	for i := range used {
		used[i] = s.annotator.IsUsed(snap.Table, i+1)
	}
	return View{
		SessionID: sessionID,
		FileName:  snap.FileName,
		Version:   snap.Version,
		Policy:    s.annotator.Policy(),
		Table:     snap.Table,
		Used:      used,
		Changed:   changed,
	}
}

// record writes an activity entry. Failures are logged and never reach the
// caller; the user's action has already happened.
func (s *Service) record(ctx context.Context, sessionID string, action AuditAction, row int, snap Snapshot) {
	entry := AuditEntry{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Action:    action,
		Row:       row,
		FileName:  snap.FileName,
		Rows:      snap.Table.DataLen(),
		Columns:   snap.Table.Width(),
		IPAddress: IPAddressFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.audit.Record(context.WithoutCancel(ctx), entry); err != nil {
		logging.FromContext(ctx).Warn("activity not recorded", "action", action, "error", err)
	}
}
