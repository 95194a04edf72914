package models_test

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/radiumworks/imagepipe/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminal(t *testing.T) {
	assert.False(t, models.Terminal(models.TaskStatusPending))
	assert.False(t, models.Terminal(models.TaskStatusRunning))
	assert.True(t, models.Terminal(models.TaskStatusSuccess))
	assert.True(t, models.Terminal(models.TaskStatusFailed))
}

func TestValidOperation(t *testing.T) {
	for _, op := range models.Operations() {
		assert.True(t, models.ValidOperation(op))
	}
	assert.False(t, models.ValidOperation("sharpen"))
	assert.False(t, models.ValidOperation(""))
	assert.False(t, models.ValidOperation("Blur"))
}

// Execution inputs stay internal; only the terminal result reaches the wire.
func TestTask_JSONHidesExecutionInputs(t *testing.T) {
	task := models.Task{
		ID:        uuid.New(),
		JobID:     uuid.New(),
		Status:    models.TaskStatusRunning,
		Progress:  50,
		InputFile: "scan.png",
		Operation: models.OperationBlur,
	}

	data, err := json.Marshal(task)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "input_file")
	assert.NotContains(t, raw, "operation")
	assert.NotContains(t, raw, "result", "non-terminal task has no result")
}
