package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	defaultPort        = 8000
	defaultCORSOrigins = "http://localhost:5173"
	defaultTimeout     = 10 * time.Second
)

// Required environment variables.
var requiredVars = []string{"DATA_STORE_URL", "DATA_STORE_SERVICE_KEY"}

// Config holds all process configuration. It is built once by Load and
// treated as read-only afterwards.
type Config struct {
	// DataStore connection settings
	DataStore DataStoreConfig

	// Server configuration
	Server ServerConfig

	// CORS configuration
	CORS CORSConfig

	// Logging configuration
	Logging LoggingConfig
}

// DataStoreConfig holds the remote data store endpoint and credential.
type DataStoreConfig struct {
	URL        string
	ServiceKey string
	Timeout    time.Duration
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port int
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// MissingError reports required environment variables that were not set.
type MissingError struct {
	Vars []string
}

func (e *MissingError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Vars, ", ")
}

// Load reads configuration from the environment, after merging an optional
// .env file from the working directory.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config using lookup to resolve variables.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	var missing []string
	for _, key := range requiredVars {
		if get(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Config{}, &MissingError{Vars: missing}
	}

	cfg := Config{
		DataStore: DataStoreConfig{
			URL:        strings.TrimRight(get("DATA_STORE_URL"), "/"),
			ServiceKey: get("DATA_STORE_SERVICE_KEY"),
			Timeout:    defaultTimeout,
		},
		Server: ServerConfig{Port: defaultPort},
		CORS: CORSConfig{
			AllowedOrigins: ParseOrigins(orDefault(get("CORS_ORIGINS"), defaultCORSOrigins)),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(orDefault(get("LOG_LEVEL"), "info")),
			Format: strings.ToLower(orDefault(get("LOG_FORMAT"), "json")),
		},
	}

	if raw := get("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Server.Port = port
	}

	if raw := get("DATA_STORE_TIMEOUT"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DATA_STORE_TIMEOUT: %w", err)
		}
		cfg.DataStore.Timeout = timeout
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks that all configuration values are usable.
func (c Config) Validate() error {
	var problems []string

	if c.DataStore.URL == "" {
		problems = append(problems, "DATA_STORE_URL is required")
	} else if !validDataStoreURL(c.DataStore.URL) {
		problems = append(problems, "DATA_STORE_URL must be an http(s) or postgres URL with a host")
	}
	if c.DataStore.ServiceKey == "" {
		problems = append(problems, "DATA_STORE_SERVICE_KEY is required")
	}
	if c.DataStore.Timeout <= 0 {
		problems = append(problems, "DATA_STORE_TIMEOUT must be positive")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, "PORT must be between 1 and 65535")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		problems = append(problems, "LOG_LEVEL must be one of: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		problems = append(problems, "LOG_FORMAT must be one of: json, text")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// String renders the configuration with the service key redacted.
func (c Config) String() string {
	return fmt.Sprintf("data_store=%s service_key=[redacted] port=%d cors_origins=%s log=%s/%s",
		c.DataStore.URL, c.Server.Port, strings.Join(c.CORS.AllowedOrigins, ","), c.Logging.Level, c.Logging.Format)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler. The service key
// is never written.
func (c Config) MarshalZerologObject(e *zerolog.Event) {
	origins := zerolog.Arr()
	for _, o := range c.CORS.AllowedOrigins {
		origins.Str(o)
	}
	e.Str("data_store_url", c.DataStore.URL).
		Dur("data_store_timeout", c.DataStore.Timeout).
		Int("port", c.Server.Port).
		Array("cors_origins", origins).
		Str("log_level", c.Logging.Level).
		Str("log_format", c.Logging.Format)
}

// ParseOrigins splits a comma-separated origin list, trimming each entry.
// Empty entries are dropped.
func ParseOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// PortFromEnv returns the configured PORT, or the default when it is unset or
// unusable. It lets a misconfigured process still bind somewhere to report
// its diagnostic.
func PortFromEnv() int {
	if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil && port > 0 && port <= 65535 {
		return port
	}
	return defaultPort
}

// validDataStoreURL reports whether raw names a backend the data store client
// can reach.
func validDataStoreURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "postgres", "postgresql":
		return true
	default:
		return false
	}
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
