package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{" warn ", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestTextOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(LoggerConfig{Level: InfoLevel, Stderr: &buf})

	l.Debug("hidden")
	l.Info("built function", "name", "main", "blocks", 4)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO: built function name=main blocks=4")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(LoggerConfig{Level: DebugLevel, Stderr: &buf})
	l.SetJSONOutput(true)

	l.Warn("cache unreadable", "path", "/tmp/x", "error", errors.New("boom"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "cache unreadable", entry["message"])
	assert.Equal(t, "/tmp/x", entry["path"])
	assert.Equal(t, "boom", entry["error"])
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(LoggerConfig{Level: DebugLevel, Stderr: &buf})
	l.SetLevel(ErrorLevel)

	l.Warn("dropped")
	l.Error("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	l := New(LoggerConfig{Level: InfoLevel, Stderr: &buf})
	unit := l.With("unit", "src/a.c")

	unit.Info("function built", "name", "f")
	l.SetLevel(ErrorLevel)
	unit.Info("dropped after parent level change")

	out := buf.String()
	assert.Contains(t, out, "function built unit=src/a.c name=f")
	assert.NotContains(t, out, "dropped")
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestOddArgs(t *testing.T) {
	assert.Equal(t, "msg arg=x k=v", formatMessage("msg", fields("x", "k", "v")))
}

func TestSpinnerWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	s := NewProgressSpinner("working")
	s.writer = &buf
	s.enabled = false

	s.Start()
	s.Message("still working")
	s.Stop()
	assert.Empty(t, buf.String())
}
