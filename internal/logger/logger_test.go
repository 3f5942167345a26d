package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"api_key", "sk-123", "model", "gemini", "MEMGRAPH_PASSWORD", "pw"})
	assert.Equal(t, []interface{}{"api_key", "[REDACTED]", "model", "gemini", "MEMGRAPH_PASSWORD", "[REDACTED]"}, out)
}

func TestSanitizeOddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"country", "US", "dangling"})
	assert.Equal(t, []interface{}{"country", "US", "dangling"}, out)
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("component", "index").Warn("embedding skipped", "document_id", "US-2025-01-01", "api_key", "x")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "index", fields["component"])
		assert.Equal(t, "US-2025-01-01", fields["document_id"])
		assert.Equal(t, "[REDACTED]", fields["api_key"])
	}
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := Nop()
	assert.Same(t, l, OrNop(l))
}
