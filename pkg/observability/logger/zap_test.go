package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func newBufferedLogger(t *testing.T, level LogLevel) (*ZapLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := NewZapLogger(Config{Level: level, Format: JSONFormat, Output: &buf})
	if err != nil {
		t.Fatalf("NewZapLogger() error = %v", err)
	}
	return l, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewZapLogger(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "json format with debug level", config: Config{Level: DebugLevel, Format: JSONFormat}},
		{name: "text format with info level", config: Config{Level: InfoLevel, Format: TextFormat}},
		{name: "empty format defaults to json", config: Config{Level: WarnLevel}},
		{name: "default to info level for invalid level", config: Config{Level: "invalid", Format: JSONFormat}},
		{name: "unknown format", config: Config{Level: InfoLevel, Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewZapLogger(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewZapLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && l == nil {
				t.Fatal("NewZapLogger() returned nil logger")
			}
		})
	}
}

func TestZapLogger_LogLevels(t *testing.T) {
	tests := []struct {
		name     string
		level    LogLevel
		logFunc  func(Logger)
		expected bool
	}{
		{"debug at debug", DebugLevel, func(l Logger) { l.Debug("m") }, true},
		{"debug at info", InfoLevel, func(l Logger) { l.Debug("m") }, false},
		{"info at warn", WarnLevel, func(l Logger) { l.Info("m") }, false},
		{"warn at warn", WarnLevel, func(l Logger) { l.Warn("m") }, true},
		{"warn at error", ErrorLevel, func(l Logger) { l.Warn("m") }, false},
		{"error at error", ErrorLevel, func(l Logger) { l.Error("m") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := newBufferedLogger(t, tt.level)
			tt.logFunc(l)
			if got := buf.Len() > 0; got != tt.expected {
				t.Fatalf("entry written = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestZapLogger_StructuredFields(t *testing.T) {
	l, buf := newBufferedLogger(t, InfoLevel)
	l.Info("query executed", "collection", "people", "total", 12)

	entries := decodeLines(t, buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry["message"] != "query executed" {
		t.Fatalf("unexpected message %v", entry["message"])
	}
	if entry["collection"] != "people" {
		t.Fatalf("unexpected collection %v", entry["collection"])
	}
	if entry["total"] != float64(12) {
		t.Fatalf("unexpected total %v", entry["total"])
	}
	for _, key := range []string{"timestamp", "level", "caller"} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("missing %s in %v", key, entry)
		}
	}
}

func TestZapLogger_With(t *testing.T) {
	l, buf := newBufferedLogger(t, InfoLevel)
	child := l.With("collection", "people")
	child.Info("first")
	l.Info("second")

	entries := decodeLines(t, buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["collection"] != "people" {
		t.Fatalf("child logger lost field: %v", entries[0])
	}
	if _, ok := entries[1]["collection"]; ok {
		t.Fatalf("parent logger gained field: %v", entries[1])
	}
}

func TestZapLogger_WithContext(t *testing.T) {
	l, buf := newBufferedLogger(t, InfoLevel)

	l.WithContext(ContextWithRequestID(context.Background(), "req-1")).Info("with id")
	l.WithContext(context.Background()).Info("without id")

	entries := decodeLines(t, buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["request_id"] != "req-1" {
		t.Fatalf("expected request_id, got %v", entries[0])
	}
	if _, ok := entries[1]["request_id"]; ok {
		t.Fatalf("unexpected request_id in %v", entries[1])
	}
}

func TestRequestIDFromContext(t *testing.T) {
	if got := RequestIDFromContext(nil); got != "" { //nolint:staticcheck
		t.Fatalf("nil context: got %q", got)
	}
	if got := RequestIDFromContext(context.WithValue(context.Background(), "request_id", "x")); got != "" { //nolint:staticcheck
		t.Fatalf("string key must not be read: got %q", got)
	}
	if got := RequestIDFromContext(ContextWithRequestID(context.Background(), "abc")); got != "abc" {
		t.Fatalf("got %q", got)
	}
}

func TestNewNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Error("dropped", "k", "v")
	l.With("a", 1).WithContext(ContextWithRequestID(context.Background(), "r")).Info("dropped")
	if err := l.Sync(); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"info", InfoLevel, false},
		{"warn", WarnLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"trace", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.input)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("ParseLogLevel(%q) = %q, %v", tt.input, got, err)
		}
	}
}

func TestParseLogFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    LogFormat
		wantErr bool
	}{
		{"json", JSONFormat, false},
		{"text", TextFormat, false},
		{"console", TextFormat, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLogFormat(tt.input)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("ParseLogFormat(%q) = %q, %v", tt.input, got, err)
		}
	}
}

func BenchmarkZapLogger_Info(b *testing.B) {
	var buf bytes.Buffer
	l, _ := NewZapLogger(Config{Level: InfoLevel, Format: JSONFormat, Output: &buf})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Info("benchmark", "i", i)
	}
}
