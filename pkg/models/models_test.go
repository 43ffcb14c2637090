package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionEvent_BeforeCreate(t *testing.T) {
	e := &ExecutionEvent{ExecutionID: "exec_1_1", Kind: "agent", SubjectID: "syntax-analyzer", Status: "started"}
	require.NoError(t, e.BeforeCreate(nil))

	assert.False(t, e.Timestamp.IsZero())
	assert.JSONEq(t, `{}`, string(e.Data))
}

func TestExecutionEvent_Data(t *testing.T) {
	e := &ExecutionEvent{}
	require.NoError(t, e.SetData(map[string]interface{}{"step": "Syntax Analysis", "failedSteps": 2}))

	data, err := e.DataMap()
	require.NoError(t, err)
	assert.Equal(t, "Syntax Analysis", data["step"])
	assert.Equal(t, 2.0, data["failedSteps"])

	require.NoError(t, e.SetData(nil))
	data, err = e.DataMap()
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestModelSnapshot_BeforeCreate(t *testing.T) {
	s := &ModelSnapshot{ModelID: "openai-gpt4"}
	require.NoError(t, s.BeforeCreate(nil))
	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.False(t, s.Timestamp.IsZero())

	id := uuid.New()
	s = &ModelSnapshot{ID: id}
	require.NoError(t, s.BeforeCreate(nil))
	assert.Equal(t, id, s.ID)
}
