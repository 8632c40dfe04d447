package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTerminal(t *testing.T) {
	terminal := []TaskStatus{TaskStatusSuccess, TaskStatusFailed, TaskStatusCancelled, TaskStatusTimeout}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
	}
	for _, s := range []TaskStatus{TaskStatusQueued, TaskStatusProcessing} {
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}
}

func TestParseTaskStatus(t *testing.T) {
	cases := map[string]TaskStatus{
		"queued":     TaskStatusQueued,
		"processing": TaskStatusProcessing,
		"success":    TaskStatusSuccess,
		"failed":     TaskStatusFailed,
		"cancelled":  TaskStatusCancelled,
		"timeout":    TaskStatusTimeout,
		"SUCCESS":    TaskStatusSuccess,
		" queued ":   TaskStatusQueued,
		// unseen service statuses fall back to processing
		"finalizing": TaskStatusProcessing,
		"":           TaskStatusProcessing,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParseTaskStatus(raw), "raw=%q", raw)
	}
}

func TestClampProgress(t *testing.T) {
	assert.Equal(t, 0, ClampProgress(-10))
	assert.Equal(t, 0, ClampProgress(0))
	assert.Equal(t, 55, ClampProgress(55))
	assert.Equal(t, 100, ClampProgress(100))
	assert.Equal(t, 100, ClampProgress(250))
}
