package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected LogLevel
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{" Error ", LevelError},
		{"", LevelInfo},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseLevel(tt.in), "ParseLevel(%q)", tt.in)
	}
}

func TestTextOutputIncludesSubsystem(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, "text", &buf)

	Info("Cache", "refreshed %d collections", 4)

	out := buf.String()
	assert.Contains(t, out, "subsystem=Cache")
	assert.Contains(t, out, "refreshed 4 collections")
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelInfo, "json", &buf)

	Warn("Filter", "unknown operator %q", "between")

	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "Filter", entry["subsystem"])
	assert.Equal(t, "WARN", entry["level"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelWarn, "text", &buf)

	Debug("Query", "should be suppressed")
	Info("Query", "should be suppressed too")

	assert.Empty(t, buf.String())
}
