package web

import (
	"net/http"

	"github.com/JonMunkholm/sheetmark/internal/core"
	"github.com/JonMunkholm/sheetmark/internal/logging"
	mw "github.com/JonMunkholm/sheetmark/internal/web/middleware"
)

// SessionCookieName holds the browser's session ID.
const SessionCookieName = "sheetmark_session"

// withSession resolves the session cookie to a live session, issuing a new
// one when the cookie is missing, unknown or expired. The session ID and the
// client's address and user agent are stored in the request context for
// handlers, loggers and activity entries.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(SessionCookieName); err == nil {
			id = c.Value
		}

		sid, created := s.service.Session(id)
		if created {
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    sid,
				Path:     "/",
				HttpOnly: true,
				Secure:   s.cfg.Session.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
			logging.FromContext(r.Context()).Debug("session started", "session_id", sid)
		}

		ctx := logging.WithSession(r.Context(), sid)
		ctx = core.ContextWithClient(ctx, mw.ClientIP(r), r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionID returns the session resolved by withSession.
func sessionID(r *http.Request) string {
	return logging.SessionID(r.Context())
}
