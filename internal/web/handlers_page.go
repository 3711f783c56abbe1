package web

import (
	"bytes"
	"net/http"

	"github.com/JonMunkholm/sheetmark/internal/core"
	"github.com/JonMunkholm/sheetmark/internal/web/templates"
)

// handleIndex renders the page for the caller's session. An ?error=CODE
// left by a redirect becomes an alert; unknown codes are ignored.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	view := s.service.View(sessionID(r))

	page := templates.PageData{Table: toTableData(view)}
	if code := r.URL.Query().Get("error"); code != "" {
		if msg, ok := core.MessageForCode(code); ok {
			page.Alert = &templates.AlertData{Message: msg.Message, Action: msg.Action, Code: msg.Code}
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := templates.Page(page).Render(r.Context(), w); err != nil {
		logError(r, err, http.StatusInternalServerError)
	}
}

// handlePageUpload ingests the dropped file and redirects back to the page.
func (s *Server) handlePageUpload(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		redirectWithError(w, r, err)
		return
	}
	if _, err := s.service.Ingest(r.Context(), sessionID(r), name, data); err != nil {
		redirectWithError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handlePageAddUsed(w http.ResponseWriter, r *http.Request) {
	s.pageAnnotate(w, r, s.service.AddUsed)
}

func (s *Server) handlePageRemoveUsed(w http.ResponseWriter, r *http.Request) {
	s.pageAnnotate(w, r, s.service.RemoveUsed)
}

func (s *Server) pageAnnotate(w http.ResponseWriter, r *http.Request, op annotateFunc) {
	row, err := parseRow(r)
	if err == nil {
		_, err = op(r.Context(), sessionID(r), row)
	}
	if err != nil {
		redirectWithError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handlePageClear(w http.ResponseWriter, r *http.Request) {
	if _, err := s.service.Clear(r.Context(), sessionID(r)); err != nil {
		redirectWithError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleExport downloads the table as export.csv. The CSV is built in a
// buffer first so a failure can still produce a proper error response; the
// buffer is dropped when the handler returns.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.service.Export(r.Context(), sessionID(r), &buf); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Content-Type", core.ExportContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+core.ExportFileName+`"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logError(r, err, http.StatusOK)
	}
}
