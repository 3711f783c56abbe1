package config

import (
	"fmt"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// LookupFunc reports the value of a variable and whether it is set.
type LookupFunc func(key string) (string, bool)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load with an explicit variable source.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Defaults returns the configuration with every default applied and nothing
// read from the environment.
func Defaults() *Config {
	cfg := &Config{}
	noEnv := func(string) (string, bool) { return "", false }
	if err := loadStruct(reflect.ValueOf(cfg).Elem(), noEnv); err != nil {
		// Defaults are compile-time constants; a failure here is a bad tag.
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// loadStruct recursively populates struct fields from the lookup.
func loadStruct(v reflect.Value, lookup LookupFunc) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal, lookup); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value := getenv(lookup, envName)
		if value == "" {
			if alt := field.Tag.Get("envAlt"); alt != "" {
				value = getenv(lookup, alt)
			}
		}

		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}

		if value == "" {
			continue
		}

		if choices := field.Tag.Get("oneof"); choices != "" {
			value = strings.ToLower(value)
			if !slices.Contains(strings.Split(choices, ","), value) {
				return fmt.Errorf("invalid value for %s=%q: must be one of %s", envName, value, choices)
			}
		}

		if err := setField(fieldVal, value, field.Tag.Get("unit")); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

func getenv(lookup LookupFunc, key string) string {
	v, _ := lookup(key)
	return strings.TrimSpace(v)
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value, unit string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		switch {
		case field.Type() == reflect.TypeOf(time.Duration(0)):
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		case unit == "bytes":
			n, err := humanize.ParseBytes(value)
			if err != nil {
				return fmt.Errorf("invalid size: %w", err)
			}
			if n > uint64(1<<62) {
				return fmt.Errorf("size %s is too large", value)
			}
			field.SetInt(int64(n))
		default:
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Upload validation
	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if c.Upload.MaxConcurrent <= 0 {
		errs = append(errs, "UPLOAD_MAX_CONCURRENT must be positive")
	}
	if c.Upload.MaxWaitTime <= 0 {
		errs = append(errs, "UPLOAD_MAX_WAIT_TIME must be positive")
	}
	if c.Upload.Timeout <= 0 {
		errs = append(errs, "UPLOAD_TIMEOUT must be positive")
	}

	// Table validation
	if !oneOf(c.Table.AnnotationPolicy, "shared", "append") {
		errs = append(errs, fmt.Sprintf("ANNOTATION_POLICY (%q) must be one of: shared, append", c.Table.AnnotationPolicy))
	}
	if !oneOf(c.Table.ExportQuoting, "rfc4180", "legacy") {
		errs = append(errs, fmt.Sprintf("EXPORT_QUOTING (%q) must be one of: rfc4180, legacy", c.Table.ExportQuoting))
	}

	// Session validation
	if c.Session.IdleTimeout <= 0 {
		errs = append(errs, "SESSION_IDLE_TIMEOUT must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		errs = append(errs, "SESSION_SWEEP_INTERVAL must be positive")
	}
	if c.Session.MaxSessions <= 0 {
		errs = append(errs, "SESSION_MAX must be positive")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.UploadLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_UPLOAD must be positive when rate limiting is enabled")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Audit validation
	if !oneOf(c.Audit.Sink, "memory", "postgres") {
		errs = append(errs, fmt.Sprintf("AUDIT_SINK (%q) must be one of: memory, postgres", c.Audit.Sink))
	}
	if c.Audit.UsesPostgres() {
		if c.Audit.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required when AUDIT_SINK=postgres")
		}
		if c.Audit.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
	} else if c.Audit.MemoryLimit <= 0 {
		errs = append(errs, "AUDIT_MEMORY_LIMIT must be positive")
	}

	// Logging validation
	if !oneOf(strings.ToLower(c.Logging.Level), "debug", "info", "warn", "error") {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	if !oneOf(strings.ToLower(c.Logging.Format), "text", "json") {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func oneOf(v string, choices ...string) bool {
	return slices.Contains(choices, v)
}

// String returns a safe string representation of the config for logging.
// The database URL and API keys are masked.
func (c *Config) String() string {
	dbURL := ""
	if c.Audit.DatabaseURL != "" {
		dbURL = "[MASKED]"
	}

	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Addr: %q}, ", c.Server.Addr())
	fmt.Fprintf(&b, "Upload: {MaxFileSize: %s, MaxConcurrent: %d, Timeout: %s}, ",
		humanize.Bytes(uint64(max(c.Upload.MaxFileSize, 0))), c.Upload.MaxConcurrent, c.Upload.Timeout)
	fmt.Fprintf(&b, "Table: {AnnotationPolicy: %q, ExportQuoting: %q}, ",
		c.Table.AnnotationPolicy, c.Table.ExportQuoting)
	fmt.Fprintf(&b, "Session: {IdleTimeout: %s, MaxSessions: %d}, ",
		c.Session.IdleTimeout, c.Session.MaxSessions)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d configured}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Audit: {Sink: %q, DatabaseURL: %q}, ", c.Audit.Sink, dbURL)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
