// Package middleware provides HTTP middleware for the web server.
package middleware

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/sheetmark/internal/logging"
)

// Logger logs one line per request with structured fields.
//
// It runs after chi's RequestID and after TrustedRealIP, so the line carries
// the request ID and r.RemoteAddr is already the client address. Requests
// that fail with 5xx are logged at error level, 4xx at warn.
//
// Log fields:
//   - method, path, status
//   - bytes: response body size
//   - duration_ms: request processing time in milliseconds
//   - ip, user_agent
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r)

		logger := logging.FromContext(r.Context())
		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"bytes", ww.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", ClientIP(r),
			"user_agent", r.UserAgent(),
		}

		switch {
		case ww.status >= http.StatusInternalServerError:
			logger.Error("request", args...)
		case ww.status >= http.StatusBadRequest:
			logger.Warn("request", args...)
		default:
			logger.Info("request", args...)
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code and
// body size.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
