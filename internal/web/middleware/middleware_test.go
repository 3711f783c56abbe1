package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JonMunkholm/sheetmark/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		headers map[string]string
		want    string
	}{
		{"no proxies configured", nil, "10.0.0.1:1234", map[string]string{"X-Real-IP": "1.2.3.4"}, "10.0.0.1:1234"},
		{"untrusted peer", []string{"10.0.0.0/8"}, "192.0.2.1:1234", map[string]string{"X-Real-IP": "1.2.3.4"}, "192.0.2.1:1234"},
		{"trusted x-real-ip", []string{"10.0.0.0/8"}, "10.1.2.3:1234", map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
		{"trusted forwarded-for takes first", []string{"10.0.0.1"}, "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "5.6.7.8, 10.0.0.1"}, "5.6.7.8"},
		{"trusted but garbage header", []string{"10.0.0.0/8"}, "10.1.2.3:1234", map[string]string{"X-Real-IP": "not-an-ip"}, "10.1.2.3:1234"},
		{"ipv6 proxy", []string{"::1"}, "[::1]:1234", map[string]string{"X-Real-IP": "2001:db8::7"}, "2001:db8::7"},
		{"invalid cidr skipped", []string{"bogus", "10.0.0.0/8"}, "10.9.9.9:1", map[string]string{"X-Real-IP": "1.1.1.1"}, "1.1.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	req.RemoteAddr = "192.0.2.1:443"
	assert.Equal(t, "192.0.2.1", ClientIP(req))

	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", ClientIP(req))

	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", ClientIP(req))
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := &config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1", "k2"}}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := APIKeyAuth(cfg)(ok)

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong", "X-API-Key", "nope", http.StatusForbidden},
		{"first key", "X-API-Key", "k1", http.StatusNoContent},
		{"second key", "X-API-Key", "k2", http.StatusNoContent},
		{"bearer", "Authorization", "Bearer k2", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/table", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	open := APIKeyAuth(&config.SecurityConfig{})(ok)
	rec := httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/table", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLogger_CapturesStatusAndBytes(t *testing.T) {
	var seen *responseWriter
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.(*responseWriter)
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, http.StatusTeapot, seen.status)
	assert.Equal(t, len("short and stout"), seen.bytes)
}
