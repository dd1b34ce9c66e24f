package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: &buf, Level: "INFO", Format: "json"})

	log.Debug("hidden")
	log.Info("populate failed", "path", "profileRef")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "populate failed", entry["msg"])
	assert.Equal(t, "profileRef", entry["path"])
	assert.Equal(t, "docquery", entry["component"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: &buf, Level: "debug"})
	log.Debug("compiled query", "collection", "users")
	assert.Contains(t, buf.String(), "collection=users")
}

func TestNopAndDefault(t *testing.T) {
	assert.False(t, Nop().Enabled(context.Background(), slog.LevelError))
	assert.Equal(t, slog.Default(), OrDefault(nil))
	l := Nop()
	assert.Same(t, l, OrDefault(l))
}
