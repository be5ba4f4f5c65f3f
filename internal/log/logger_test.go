package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestSetupWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "WARN", "json")

	Debug("should be dropped")
	Info("should be dropped too")
	assert.Zero(t, buf.Len())

	Warn("kept")
	out := decodeLine(t, &buf)
	assert.Equal(t, "kept", out["msg"])
}

func TestSetupWriterInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "bogus", "json")

	Debug("dropped")
	assert.Zero(t, buf.Len())

	Info("kept")
	out := decodeLine(t, &buf)
	assert.Equal(t, "kept", out["msg"])
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "INFO", "text")

	Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "INFO", "json")

	WithComponent("dispatch").Info("hello")
	out := decodeLine(t, &buf)
	assert.Equal(t, "dispatch", out["component"])
	assert.Equal(t, "hello", out["msg"])
}

func TestWithAgent(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "INFO", "json")

	WithAgent("agent-123").Info("agent msg")
	out := decodeLine(t, &buf)
	assert.Equal(t, "agent-123", out["agent_id"])
}

func TestWithProfile(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "INFO", "json")

	WithProfile("researcher").Info("profile msg")
	out := decodeLine(t, &buf)
	assert.Equal(t, "researcher", out["profile"])
}
