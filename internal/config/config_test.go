package config

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"DATA_STORE_URL":         "https://example.supabase.co/",
		"DATA_STORE_SERVICE_KEY": "service-key",
	}))
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	if cfg.DataStore.URL != "https://example.supabase.co" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.DataStore.URL)
	}
	if cfg.Server.Port != 8000 {
		t.Fatalf("expected default port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Addr() != ":8000" {
		t.Fatalf("expected addr :8000, got %q", cfg.Addr())
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"http://localhost:5173"}) {
		t.Fatalf("unexpected default origins: %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.DataStore.Timeout != 10*time.Second {
		t.Fatalf("expected 10s timeout, got %v", cfg.DataStore.Timeout)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"DATA_STORE_URL":         "postgres://localhost:5432/app",
		"DATA_STORE_SERVICE_KEY": "service-key",
		"PORT":                   "9090",
		"CORS_ORIGINS":           " https://a.example , https://b.example,,",
		"DATA_STORE_TIMEOUT":     "3s",
		"LOG_LEVEL":              "DEBUG",
		"LOG_FORMAT":             "text",
	}))
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, want) {
		t.Fatalf("expected origins %v, got %v", want, cfg.CORS.AllowedOrigins)
	}
	if cfg.DataStore.Timeout != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %v", cfg.DataStore.Timeout)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestFromEnvMissingRequired(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want []string
	}{
		{
			name: "both missing",
			env:  map[string]string{},
			want: []string{"DATA_STORE_URL", "DATA_STORE_SERVICE_KEY"},
		},
		{
			name: "key missing",
			env:  map[string]string{"DATA_STORE_URL": "https://example.supabase.co"},
			want: []string{"DATA_STORE_SERVICE_KEY"},
		},
		{
			name: "url blank",
			env:  map[string]string{"DATA_STORE_URL": "   ", "DATA_STORE_SERVICE_KEY": "k"},
			want: []string{"DATA_STORE_URL"},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromEnv(envMap(tc.env))
			var missing *MissingError
			if !errors.As(err, &missing) {
				t.Fatalf("expected MissingError, got %v", err)
			}
			if !reflect.DeepEqual(missing.Vars, tc.want) {
				t.Fatalf("expected missing %v, got %v", tc.want, missing.Vars)
			}
		})
	}
}

func TestFromEnvInvalidValues(t *testing.T) {
	base := map[string]string{
		"DATA_STORE_URL":         "https://example.supabase.co",
		"DATA_STORE_SERVICE_KEY": "service-key",
	}

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "non-numeric port", key: "PORT", value: "eighty"},
		{name: "port out of range", key: "PORT", value: "70000"},
		{name: "bad timeout", key: "DATA_STORE_TIMEOUT", value: "soon"},
		{name: "zero timeout", key: "DATA_STORE_TIMEOUT", value: "0s"},
		{name: "bad log level", key: "LOG_LEVEL", value: "verbose"},
		{name: "bad log format", key: "LOG_FORMAT", value: "xml"},
		{name: "url without scheme", key: "DATA_STORE_URL", value: "myproject.supabase.co"},
		{name: "url with unsupported scheme", key: "DATA_STORE_URL", value: "ftp://files.example.com"},
		{name: "url without host", key: "DATA_STORE_URL", value: "https://"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			env := map[string]string{}
			for k, v := range base {
				env[k] = v
			}
			env[tc.key] = tc.value
			_, err := FromEnv(envMap(env))
			if err == nil {
				t.Fatalf("expected error for %s=%q", tc.key, tc.value)
			}
			if !strings.Contains(err.Error(), tc.key) {
				t.Fatalf("expected error to name %s, got %v", tc.key, err)
			}
		})
	}
}

func TestServiceKeyNeverRendered(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"DATA_STORE_URL":         "https://example.supabase.co",
		"DATA_STORE_SERVICE_KEY": "super-secret-service-key",
	}))
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	if strings.Contains(cfg.String(), "super-secret-service-key") {
		t.Fatalf("String leaked service key: %s", cfg.String())
	}

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	logger.Info().Object("config", cfg).Msg("loaded")
	if strings.Contains(buf.String(), "super-secret-service-key") {
		t.Fatalf("log output leaked service key: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "https://example.supabase.co") {
		t.Fatalf("expected data store url in log output: %s", buf.String())
	}
}

func TestParseOrigins(t *testing.T) {
	got := ParseOrigins("http://localhost:5173, https://app.example.com ")
	want := []string{"http://localhost:5173", "https://app.example.com"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := ParseOrigins(""); len(got) != 0 {
		t.Fatalf("expected no origins, got %v", got)
	}
}
