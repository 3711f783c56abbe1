package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is:
//   - Logged with full technical details and the request ID (server-side)
//   - Mapped to a user message with an action and a code via core.MapError
//   - Returned as JSON to API clients, or carried across a redirect as
//     ?error=CODE for the page routes (post-redirect-get)
//
// The HTTP status comes from the error kind, see statusFor.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/JonMunkholm/sheetmark/internal/core"
	"github.com/JonMunkholm/sheetmark/internal/logging"
)

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var decodeErr *core.DecodeError
	switch {
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyUploads):
		return http.StatusServiceUnavailable
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, core.ErrSessionExpired):
		return http.StatusConflict
	case errors.As(err, &decodeErr),
		errors.Is(err, core.ErrNoFile),
		errors.Is(err, core.ErrEmptyTable),
		errors.Is(err, core.ErrRowOutOfRange),
		errors.Is(err, errInvalidRow),
		errors.Is(err, context.Canceled):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes it in the form the client expects.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := logError(r, err, statusCode)

	if wantsJSON(r) {
		respondErrorJSON(w, userMsg, statusCode)
		return
	}
	http.Error(w, userMsg.Message+" ("+userMsg.Code+")", statusCode)
}

// redirectWithError sends a page request back to the index with the error
// code in the query string, where handleIndex turns it into an alert.
func redirectWithError(w http.ResponseWriter, r *http.Request, err error) {
	userMsg := logError(r, err, statusFor(err))
	http.Redirect(w, r, "/?error="+url.QueryEscape(userMsg.Code), http.StatusSeeOther)
}

func logError(r *http.Request, err error, statusCode int) core.UserMessage {
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request error", args...)
	}
	return userMsg
}

func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// wantsJSON reports whether the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}
