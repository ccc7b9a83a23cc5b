package messaging

import (
	"context"

	"github.com/google/uuid"
)

const (
	RenderQueue = "render_queue"
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// RenderTaskPayload references a job record in the store; the run id ties
// the task to one pipeline run so a stale task can never touch a newer run.
type RenderTaskPayload struct {
	Id    string
	RunId uuid.UUID
}

type Publisher interface {
	PublishRenderTask(ctx context.Context, payload RenderTaskPayload) error

	Close()
}

type Reciever interface {
	Tasks() <-chan Task

	Close()
}
