package audit

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogEventAndRecent(t *testing.T) {
	l := NewLogger(filepath.Join(t.TempDir(), "audit", "audit.sqlite"))

	require.NoError(t, l.LogEvent("u-dana", EventOKRCreated, map[string]string{"okr_id": "okr-1"}))
	require.NoError(t, l.LogEvent("u-dana", EventCheckIn, map[string]any{"okr_id": "okr-1", "confidence": 60}))

	events, err := l.Recent(10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventCheckIn, events[0].Type)
	assert.Equal(t, "u-dana", events[0].Actor)
	assert.JSONEq(t, `{"okr_id":"okr-1","confidence":60}`, events[0].PayloadJSON)
	assert.False(t, events[0].TS.IsZero())
	assert.Equal(t, EventOKRCreated, events[1].Type)

	events, err = l.Recent(1)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRecentMissingLog(t *testing.T) {
	l := NewLogger(filepath.Join(t.TempDir(), "missing.sqlite"))
	events, err := l.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestLogEventUsesEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.sqlite")
	t.Setenv("OKRTRACK_AUDIT_DB", path)

	require.NoError(t, LogEvent("system", EventImport, nil))

	events, err := NewLogger(path).Recent(0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "null", events[0].PayloadJSON)
}
