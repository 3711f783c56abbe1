// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Upload   UploadConfig
	Table    TableConfig
	Session  SessionConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Audit    AuditConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// UploadConfig holds spreadsheet upload settings.
type UploadConfig struct {
	// MaxFileSize is the largest accepted upload; accepts "20MB" or plain bytes (default: 20MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"20MB" unit:"bytes"`

	// MaxConcurrent is the number of uploads decoded in parallel (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long an upload waits for a decode slot (default: 10s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"10s"`

	// Timeout bounds a single decode (default: 30s)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"30s"`
}

// TableConfig selects annotation and export behavior.
type TableConfig struct {
	// AnnotationPolicy is shared (one Status column) or append (a Status/Used pair per add)
	AnnotationPolicy string `env:"ANNOTATION_POLICY" default:"shared" oneof:"shared,append"`

	// ExportQuoting is rfc4180 or legacy (plain comma join, no escaping)
	ExportQuoting string `env:"EXPORT_QUOTING" default:"rfc4180" oneof:"rfc4180,legacy"`
}

// SessionConfig holds browser session settings.
type SessionConfig struct {
	// IdleTimeout drops a session's table after this much inactivity (default: 2h)
	IdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" default:"2h"`

	// SweepInterval is how often idle sessions are collected (default: 5m)
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" default:"5m"`

	// MaxSessions caps live sessions; the least recently used is evicted (default: 1000)
	MaxSessions int `env:"SESSION_MAX" default:"1000"`

	// CookieSecure marks the session cookie Secure; enable behind HTTPS (default: false)
	CookieSecure bool `env:"SESSION_COOKIE_SECURE" default:"false"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// UploadLimit is requests per minute for upload endpoints (default: 20)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey guards /api with X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// AuditConfig selects where the activity log goes.
type AuditConfig struct {
	// Sink is memory or postgres (default: memory)
	Sink string `env:"AUDIT_SINK" default:"memory" oneof:"memory,postgres"`

	// DatabaseURL is the PostgreSQL connection string, required for the postgres sink
	DatabaseURL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the pool size for the postgres sink (default: 5)
	MaxConns int `env:"DB_MAX_CONNS" default:"5"`

	// MemoryLimit is how many entries the memory sink keeps (default: 500)
	MemoryLimit int `env:"AUDIT_MEMORY_LIMIT" default:"500"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info" oneof:"debug,info,warn,error"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text" oneof:"text,json"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// UsesPostgres reports whether activity goes to the database.
func (c *AuditConfig) UsesPostgres() bool {
	return c.Sink == "postgres"
}
