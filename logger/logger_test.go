package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf).WithField("component", "fetcher")

	log.Warn().Str("url", "https://example.com/p").Msg("Warm-up request failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "fetcher", entry["component"])
	assert.Equal(t, "https://example.com/p", entry["url"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "Warm-up request failed", entry["message"])
}

func TestLogErrorTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	prev := Default
	Default = New(&buf)
	defer func() { Default = prev }()

	LogError("publisher", errors.New("boom"), "Failed to close %s", "publisher")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "publisher", entry["component"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "Failed to close publisher", entry["message"])
}
