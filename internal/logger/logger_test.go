package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestNew_ConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "client.log")

	log, closeLog := New(Config{Console: &console, Level: "info", File: logFile})
	log.Debug("hidden")
	log.Info("sync finished", "pushed", 3)
	require.NoError(t, closeLog())

	assert.Contains(t, console.String(), "sync finished")
	assert.NotContains(t, console.String(), "hidden")

	raw, err := os.ReadFile(logFile)
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(raw), &record))
	assert.Equal(t, "sync finished", record["msg"])
	assert.Equal(t, float64(3), record["pushed"])
}

func TestNew_Quiet(t *testing.T) {
	var console bytes.Buffer
	log, closeLog := New(Config{Console: &console, Quiet: true})
	log.Error("nobody hears this")

	assert.NoError(t, closeLog())
	assert.Empty(t, console.String())
}

func TestMultiHandler_WithAttrs(t *testing.T) {
	var a, b bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&a, nil),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	)

	log := slog.New(h).With("component", "sync")
	log.Info("cycle started")

	assert.Contains(t, a.String(), "component=sync")
	assert.Empty(t, b.String(), "Second handler filters info records")
}
