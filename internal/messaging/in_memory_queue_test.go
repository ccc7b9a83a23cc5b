package messaging

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueuePublishAndReceive(t *testing.T) {
	queue := NewInMemoryQueue()

	runId := uuid.New()
	require.NoError(t, queue.PublishRenderTask(context.Background(), RenderTaskPayload{Id: "the_id", RunId: runId}))

	tasks := queue.Tasks()
	queue.Close()

	var received []RenderTaskPayload
	for task := range tasks {
		assert.Equal(t, RenderQueue, task.Type())

		var payload RenderTaskPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &payload))
		received = append(received, payload)
	}

	require.Len(t, received, 1)
	assert.Equal(t, "the_id", received[0].Id)
	assert.Equal(t, runId, received[0].RunId)
}
