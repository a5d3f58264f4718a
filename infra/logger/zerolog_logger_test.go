package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestComponentFieldAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "market", "warn")
	l.Infof("dropped")
	l.Warnf("tie break fell back for %s", "interval 1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "market", rec["component"])
	assert.Equal(t, "warn", rec["level"])
	assert.Equal(t, "tie break fell back for interval 1", rec["message"])
}

func TestDebugwFields(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, "market", "debug").Debugw("model assembled", map[string]any{"variables": 12})
	assert.Contains(t, buf.String(), `"variables":12`)
}
