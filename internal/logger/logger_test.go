package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithConfig(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithConfig(&buf, "translate", log.InfoLevel, false, log.JSONFormatter)
	l.Debug("hidden")
	l.Info("translated", "words", 4)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "translated", entry["msg"])
	assert.Equal(t, "translate", entry["prefix"])
	assert.EqualValues(t, 4, entry["words"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestDiscard(t *testing.T) {
	l := Discard()
	assert.NotPanics(t, func() { l.Error("dropped") })
}
