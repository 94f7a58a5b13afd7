package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"adgrid/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.Log{Level: "warn", Format: "json"}, &buf)

	log.Info("hidden")
	log.Warn("shown", "order_id", "order_1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "order_1", entry["order_id"])
	assert.Equal(t, "adgrid", entry["service"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	New(config.Log{Level: "debug", Format: "text"}, &buf).Debug("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
