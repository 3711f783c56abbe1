package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/sheetmark/internal/core"
)

// defaultActivityLimit and maxActivityLimit bound GET /api/activity.
const (
	defaultActivityLimit = 50
	maxActivityLimit     = 500
)

type annotateFunc func(ctx context.Context, sessionID string, row int) (core.View, error)

// handleGetTable returns the session's table.
func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, toResponse(s.service.View(sessionID(r))))
}

// handleAPIUpload ingests a multipart "file" and returns the new table.
func (s *Server) handleAPIUpload(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	view, err := s.service.Ingest(r.Context(), sessionID(r), name, data)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, toResponse(view))
}

func (s *Server) handleAPIAddUsed(w http.ResponseWriter, r *http.Request) {
	s.apiAnnotate(w, r, s.service.AddUsed)
}

// handleAPIRemoveUsed answers a row without the marker with changed=false.
func (s *Server) handleAPIRemoveUsed(w http.ResponseWriter, r *http.Request) {
	s.apiAnnotate(w, r, s.service.RemoveUsed)
}

func (s *Server) apiAnnotate(w http.ResponseWriter, r *http.Request, op annotateFunc) {
	row, err := parseRow(r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	view, err := op(r.Context(), sessionID(r), row)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, toResponse(view))
}

// handleClearTable drops the session's table.
func (s *Server) handleClearTable(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Clear(r.Context(), sessionID(r))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, toResponse(view))
}

// ActivityResponse lists a session's activity, newest first.
type ActivityResponse struct {
	Entries []core.AuditEntry `json:"entries"`
}

// handleActivity lists the caller's recent activity. ?limit=N caps the
// result at maxActivityLimit.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := min(parseIntParam(r, "limit", defaultActivityLimit), maxActivityLimit)

	entries, err := s.service.Activity(r.Context(), sessionID(r), limit)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	writeJSON(w, r, http.StatusOK, ActivityResponse{Entries: entries})
}

// HealthResponse reports liveness plus session and decode load.
type HealthResponse struct {
	Status   string                   `json:"status"`
	Sessions int                      `json:"sessions"`
	Policy   string                   `json:"policy"`
	Decodes  core.DecodeLimiterStatus `json:"decodes"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:   "ok",
		Sessions: s.service.SessionCount(),
		Policy:   string(s.service.Policy()),
		Decodes:  s.service.DecodeStatus(),
	})
}
