package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVs_RedactsSecrets(t *testing.T) {
	kv := sanitizeKVs([]interface{}{
		"document_id", "doc-1",
		"password", "hunter2",
		"Access_Token", "abc",
		"header", "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJhZG1pbiJ9.sig",
	})
	assert.Equal(t, []interface{}{
		"document_id", "doc-1",
		"password", "[REDACTED]",
		"Access_Token", "[REDACTED]",
		"header", "[REDACTED]",
	}, kv)
}

func TestSanitizeKVs_OddLength(t *testing.T) {
	kv := sanitizeKVs([]interface{}{"page", 3, "dangling"})
	assert.Equal(t, []interface{}{"page", 3, "dangling"}, kv)
}

func TestWith_CarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("component", "DocumentIngestor").Error("page write failed", "document_id", "d1", "page", 2)

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "DocumentIngestor", fields["component"])
		assert.Equal(t, "d1", fields["document_id"])
		assert.EqualValues(t, 2, fields["page"])
	}
}
