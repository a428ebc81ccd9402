package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithFieldsAddsContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Level: InfoLevel, Output: &buf})

	log.WithFields(map[string]interface{}{"component": "relay"}).
		Error(errors.New("broker down"), "publish failed", "event_id", "e-1")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "relay", entry["component"])
	assert.Equal(t, "e-1", entry["event_id"])
	assert.Equal(t, "broker down", entry["error"])
	assert.Equal(t, "publish failed", entry["message"])
	assert.Equal(t, "error", entry["level"])
}

func TestLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Level: WarnLevel, Output: &buf})

	log.Info("hidden")
	log.Debug("hidden")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, WarnLevel, ParseLevel("warn"))
	assert.Equal(t, InfoLevel, ParseLevel(""))
	assert.Equal(t, InfoLevel, ParseLevel("chatty"))
}
