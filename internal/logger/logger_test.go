package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"api_key", "sk-123", "model", "qwen", "auth_token", "abc", "dangling"})
	assert.Equal(t, []interface{}{"api_key", "[REDACTED]", "model", "qwen", "auth_token", "[REDACTED]", "dangling"}, out)
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}
	l.With("component", "builder").Info("nodes created", "count", 3, "password", "hunter2")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "builder", fields["component"])
	assert.EqualValues(t, 3, fields["count"])
	assert.Equal(t, "[REDACTED]", fields["password"])
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	l, err := New(Config{Level: "debug", Mode: "prod"})
	require.NoError(t, err)
	l.Debug("ok")
}
