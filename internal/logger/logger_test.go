package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	got := sanitizeKVs([]interface{}{"api_key", "sk-123", "collection", "docs", "Authorization", "Bearer x", "dangling"})
	assert.Equal(t, []interface{}{"api_key", "[REDACTED]", "collection", "docs", "Authorization", "[REDACTED]", "dangling"}, got)
}

func TestLoggerWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := &Logger{SugaredLogger: zap.New(core).Sugar()}

	log.With("service", "Indexer").Info("indexed", "points", 3, "token", "abc")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "Indexer", fields["service"])
		assert.EqualValues(t, 3, fields["points"])
		assert.Equal(t, "[REDACTED]", fields["token"])
	}
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"development", "production"} {
		log, err := New(mode)
		assert.NoError(t, err)
		assert.NotNil(t, log)
	}
	NewNop().Info("discarded")
}
