package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/gray-meter-core/internal/infrastructure/config"
)

func jsonLogger(buf *bytes.Buffer, level string) *Logger {
	return newLogger(config.LoggingConfig{
		Level:  level,
		Format: "json",
	}, "0.0.0-test", buf)
}

func decodeLine(t *testing.T, line []byte) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("log output is not valid JSON: %v\n%s", err, line)
	}
	return entry
}

func TestLogger_JSONRecordShape(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, "info")

	logger.Info("writer started", "queue_size", 64)

	entry := decodeLine(t, buf.Bytes())
	if entry["msg"] != "writer started" {
		t.Errorf("msg = %v, want 'writer started'", entry["msg"])
	}
	if entry["service"] != "graymeter" {
		t.Errorf("service = %v, want graymeter", entry["service"])
	}
	if entry["version"] != "0.0.0-test" {
		t.Errorf("version = %v, want 0.0.0-test", entry["version"])
	}
	if entry["queue_size"] != float64(64) {
		t.Errorf("queue_size = %v, want 64", entry["queue_size"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAt      func(*Logger)
		wantOutput bool
	}{
		{
			name:       "debug suppressed at info",
			level:      "info",
			logAt:      func(l *Logger) { l.Debug("fragment stored") },
			wantOutput: false,
		},
		{
			name:       "debug emitted at debug",
			level:      "debug",
			logAt:      func(l *Logger) { l.Debug("fragment stored") },
			wantOutput: true,
		},
		{
			name:       "info suppressed at error",
			level:      "error",
			logAt:      func(l *Logger) { l.Info("collector started") },
			wantOutput: false,
		},
		{
			name:       "error always emitted",
			level:      "error",
			logAt:      func(l *Logger) { l.Error("batch write failed") },
			wantOutput: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logAt(jsonLogger(&buf, tt.level))

			if got := buf.Len() > 0; got != tt.wantOutput {
				t.Errorf("output present = %v, want %v\n%s", got, tt.wantOutput, buf.Bytes())
			}
		})
	}
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{
		Level:  "info",
		Format: "text",
	}, "0.0.0-test", &buf)

	logger.Info("collector started", "devices", 3)

	out := buf.String()
	if strings.HasPrefix(out, "{") {
		t.Fatalf("expected key=value text output, got JSON:\n%s", out)
	}
	if !strings.Contains(out, "msg=") || !strings.Contains(out, "devices=3") {
		t.Errorf("text output missing expected fields:\n%s", out)
	}
}

func TestLogger_WithCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, "info")

	child := logger.With("component", "writer")
	if child == logger {
		t.Fatal("With must return a new logger")
	}
	child.Info("batch flushed")

	entry := decodeLine(t, buf.Bytes())
	if entry["component"] != "writer" {
		t.Errorf("component = %v, want writer", entry["component"])
	}

	// The parent stays untagged.
	buf.Reset()
	logger.Info("collector started")
	if _, ok := decodeLine(t, buf.Bytes())["component"]; ok {
		t.Error("parent logger must not carry the child's component")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestDefault(t *testing.T) {
	if Default() == nil {
		t.Fatal("expected non-nil default logger")
	}
}
