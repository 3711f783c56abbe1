package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/sheetmark/internal/config"
)

// APIKeyAuth guards the JSON API with the X-API-Key header (or an
// "Authorization: Bearer" token). With RequireAPIKey off every request
// passes; with it on and no keys configured every request is rejected.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			key := requestAPIKey(r)
			if key == "" {
				slog.Warn("auth: missing API key", "path", r.URL.Path, "method", r.Method, "ip", ClientIP(r))
				writeAuthError(w, http.StatusUnauthorized, "missing API key", "AUTH001")
				return
			}
			if !isValidAPIKey(key, cfg.APIKeys) {
				slog.Warn("auth: invalid API key", "path", r.URL.Path, "method", r.Method, "ip", ClientIP(r))
				writeAuthError(w, http.StatusForbidden, "invalid API key", "AUTH002")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func requestAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// isValidAPIKey compares key against every configured key in constant time,
// so timing does not reveal which key (if any) matched.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}

func writeAuthError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   message,
		"message": message,
		"code":    code,
	})
}
