package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogLevel(t *testing.T) {
	testCases := []struct {
		name     string
		level    string
		env      string
		expected zerolog.Level
	}{
		{name: "explicit level", level: "warn", expected: zerolog.WarnLevel},
		{name: "invalid level", level: "loud", expected: zerolog.InfoLevel},
		{name: "production default", env: "production", expected: zerolog.InfoLevel},
		{name: "development default", env: "development", expected: zerolog.DebugLevel},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tc.level)
			t.Setenv("DEALBRIDGE_ENVIRONMENT", tc.env)
			assert.Equal(t, tc.expected, getLogLevel())
		})
	}
}

func TestComponentLoggers(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, zerolog.DebugLevel)
	defer func() { Default = nil }()

	buf.Reset()
	ForBinder().Info().Str("selector", ".deal-actions").Msg("button created")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "binder", entry["component"])
	assert.Equal(t, "dealbridge", entry["service"])
	assert.Equal(t, ".deal-actions", entry["selector"])
	assert.Equal(t, "button created", entry["message"])

	buf.Reset()
	ForPage("chrome").Warn().Msg("tab lost")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "page", entry["component"])
	assert.Equal(t, "chrome", entry["page"])
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, zerolog.InfoLevel)
	defer func() { Default = nil }()

	buf.Reset()
	LogError("publisher", errors.New("connection refused"), "failed to publish %s", "launch")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "publisher", entry["component"])
	assert.Equal(t, "connection refused", entry["error"])
	assert.Equal(t, "failed to publish launch", entry["message"])
}

func TestIsDebugEnabled(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, zerolog.InfoLevel)
	defer func() { Default = nil }()
	assert.False(t, IsDebugEnabled())

	InitWithWriter(os.Stderr, zerolog.DebugLevel)
	assert.True(t, IsDebugEnabled())
}
