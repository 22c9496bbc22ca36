package logger

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormat(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		logFunc   func(l *Logger)
		wantLines int
		wantLevel string
		wantMsg   string
		wantAttrs map[string]string
	}{
		{
			name:  "debug level logs debug messages",
			level: "debug",
			logFunc: func(l *Logger) {
				l.Debug("dedup check", slog.String("candidate", "Amala Spot"))
			},
			wantLines: 1,
			wantLevel: "DEBUG",
			wantMsg:   "dedup check",
			wantAttrs: map[string]string{"candidate": "Amala Spot"},
		},
		{
			name:  "info level filters debug messages",
			level: "info",
			logFunc: func(l *Logger) {
				l.Debug("should not appear")
				l.Info("enqueued", slog.String("priority", "high"))
			},
			wantLines: 1,
			wantLevel: "INFO",
			wantMsg:   "enqueued",
			wantAttrs: map[string]string{"priority": "high"},
		},
		{
			name:  "warn level filters info messages",
			level: "warn",
			logFunc: func(l *Logger) {
				l.Info("should not appear")
				l.Warn("lookup retry", slog.Int("attempt", 2))
			},
			wantLines: 1,
			wantLevel: "WARN",
			wantMsg:   "lookup retry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "test.log")

			l, err := New(&Config{
				Level:  tt.level,
				Format: "json",
				Output: path,
			})
			require.NoError(t, err)

			tt.logFunc(l)

			data, err := os.ReadFile(path)
			require.NoError(t, err)

			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			require.Len(t, lines, tt.wantLines)

			var entry map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))

			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, tt.wantMsg, entry["msg"])
			for k, v := range tt.wantAttrs {
				assert.Equal(t, v, entry[k])
			}
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")

	l, err := New(&Config{
		Level:      "info",
		Format:     "console",
		Output:     path,
		TimeFormat: time.TimeOnly,
	})
	require.NoError(t, err)

	l.Info("started")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "started")
	// File output must not carry ANSI color codes
	assert.NotContains(t, string(data), "\x1b[")
}

func TestNew_InvalidFilePath(t *testing.T) {
	_, err := New(&Config{
		Level:  "info",
		Format: "json",
		Output: "/nonexistent-dir/sub/service.log",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open log file")
}

func TestNewDefault(t *testing.T) {
	l := NewDefault()
	require.NotNil(t, l)
	require.NotNil(t, l.Logger)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestWith(t *testing.T) {
	path := filepath.Join(t.TempDir(), "with.log")

	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	l.With("service", "discovery").Info("batch processed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry))
	assert.Equal(t, "discovery", entry["service"])
}
