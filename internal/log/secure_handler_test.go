package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSecureHandler_SanitizesSensitiveKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		key      string
		value    string
		wantMask bool
	}{
		{name: "cookie is masked", key: "cookie", value: "session=abc123", wantMask: true},
		{name: "Cookie (uppercase) is masked", key: "Cookie", value: "session=abc123", wantMask: true},
		{name: "authorization is masked", key: "authorization", value: "Bearer token123", wantMask: true},
		{name: "auth_key is masked", key: "auth_key", value: "plainvalue", wantMask: true},
		{name: "api_key is masked", key: "api_key", value: "libre-key", wantMask: true},
		{name: "translate_token is masked", key: "translate_token", value: "abc", wantMask: true},
		{name: "seed is visible", key: "seed", value: "https://example.fi", wantMask: false},
		{name: "url is visible", key: "url", value: "https://example.fi/fi/about", wantMask: false},
		{name: "keyword is visible", key: "keyword", value: "ilmasto", wantMask: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewSecureLogger(&buf, true)
			logger.Info("test message", tt.key, tt.value)

			output := buf.String()
			if tt.wantMask {
				if strings.Contains(output, tt.value) {
					t.Errorf("expected value to be masked, but found in output: %s", output)
				}
				if !strings.Contains(output, MaskValue) {
					t.Errorf("expected mask value in output, got: %s", output)
				}
				return
			}
			if !strings.Contains(output, tt.value) {
				t.Errorf("expected value %q in output, got: %s", tt.value, output)
			}
		})
	}
}

func TestSecureHandler_SanitizesSensitivePatterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    string
		wantMask bool
	}{
		{name: "bearer token", value: "Bearer eyJhbGciOiJIUzI1NiJ9", wantMask: true},
		{name: "basic auth", value: "Basic dXNlcm5hbWU6cGFzc3dvcmQ=", wantMask: true},
		{name: "deepl free key", value: "0f1e2d3c-4b5a-6978-8a9b-0c1d2e3f4a5b:fx", wantMask: true},
		{name: "deepl header value", value: "DeepL-Auth-Key 0f1e2d3c", wantMask: true},
		{name: "long opaque token", value: "abcdefghijklmnopqrstuvwxyz0123456789", wantMask: true},
		{name: "plain url", value: "https://example.fi/fi/page", wantMask: false},
		{name: "run id", value: "0f1e2d3c-4b5a-6978-8a9b-0c1d2e3f4a5b", wantMask: false},
		{name: "short status", value: "ok", wantMask: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := isSensitiveValue(tt.value); got != tt.wantMask {
				t.Errorf("isSensitiveValue(%q) = %v, want %v", tt.value, got, tt.wantMask)
			}
		})
	}
}

func TestSecureHandler_MasksQueryCredentials(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, true)
	logger.Info("request", "endpoint", "https://api.example.com/translate?auth_key=s3cr3t&target_lang=EN")

	output := buf.String()
	if strings.Contains(output, "s3cr3t") {
		t.Errorf("expected credential to be masked, got: %s", output)
	}
	if !strings.Contains(output, "target_lang=EN") {
		t.Errorf("expected other parameters to stay visible, got: %s", output)
	}
}

func TestSecureHandler_LogLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		verbose    bool
		level      slog.Level
		shouldShow bool
	}{
		{name: "debug shown in verbose mode", verbose: true, level: slog.LevelDebug, shouldShow: true},
		{name: "debug hidden in normal mode", verbose: false, level: slog.LevelDebug, shouldShow: false},
		{name: "info shown in normal mode", verbose: false, level: slog.LevelInfo, shouldShow: true},
		{name: "warn shown in normal mode", verbose: false, level: slog.LevelWarn, shouldShow: true},
		{name: "error shown in normal mode", verbose: false, level: slog.LevelError, shouldShow: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewSecureLogger(&buf, tt.verbose)
			msg := "unique_message_4711"
			logger.Log(t.Context(), tt.level, msg)

			has := strings.Contains(buf.String(), msg)
			if tt.shouldShow && !has {
				t.Errorf("expected message to be shown, got: %s", buf.String())
			}
			if !tt.shouldShow && has {
				t.Errorf("expected message to be hidden, got: %s", buf.String())
			}
		})
	}
}

func TestSecureHandler_WithAttrsAndGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, true).With("api_key", "secret123").WithGroup("request")
	logger.Info("fetch", "url", "https://example.fi", "cookie", "session=abc")

	output := buf.String()
	if strings.Contains(output, "secret123") || strings.Contains(output, "session=abc") {
		t.Errorf("expected secrets to be masked, got: %s", output)
	}
	if !strings.Contains(output, "https://example.fi") {
		t.Errorf("expected url to be visible, got: %s", output)
	}
}

func TestNewSecureJSONLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureJSONLogger(&buf, false)
	logger.Info("test message", "password", "hunter2")

	output := buf.String()
	if !strings.HasPrefix(output, "{") {
		t.Errorf("expected JSON output, got: %s", output)
	}
	if strings.Contains(output, "hunter2") {
		t.Errorf("expected password to be masked, got: %s", output)
	}
}

func TestContainsSensitiveKeyword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key      string
		expected bool
	}{
		{"user_password", true},
		{"deepl_auth", true},
		{"session_cookie", true},
		{"client_secret", true},
		{"url", false},
		{"seed", false},
		{"keyword", false},
		{"keywords_file", false},
		{"cache_key", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()

			if got := containsSensitiveKeyword(tt.key); got != tt.expected {
				t.Errorf("containsSensitiveKeyword(%q) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestNewSecureHandler_NilHandler(t *testing.T) {
	t.Parallel()

	handler := NewSecureHandler(nil)
	if handler == nil {
		t.Fatal("expected non-nil handler")
	}
	slog.New(handler).Info("test message")
}
