package queue

import (
	"context"
	"fmt"
	"time"

	"library-backend/internal/domains/lending/model"
	"library-backend/internal/shared"

	"github.com/hibiken/asynq"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// enqueuer is the part of *asynq.Client the publisher uses
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EventPublisher enqueues committed lending events as asynq tasks
type EventPublisher struct {
	client enqueuer
}

func NewEventPublisher(client *asynq.Client) *EventPublisher {
	return &EventPublisher{client: client}
}

// EventTaskType is the asynq task type for a lending event
func EventTaskType(t model.EventType) string {
	return shared.TaskPrefixLendingEvent + string(t)
}

// NewEventTask encodes a lending event
func NewEventTask(event model.LendingEvent) (*asynq.Task, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return asynq.NewTask(EventTaskType(event.Type), payload), nil
}

// Publish implements the lending EventPublisher
func (p *EventPublisher) Publish(ctx context.Context, event model.LendingEvent) error {
	task, err := NewEventTask(event)
	if err != nil {
		return err
	}

	_, err = p.client.EnqueueContext(ctx, task,
		asynq.Queue(shared.QueueLending),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return nil
}

// DecodeEvent reads a lending event back from a task payload
func DecodeEvent(task *asynq.Task) (model.LendingEvent, error) {
	var event model.LendingEvent
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		return event, fmt.Errorf("unmarshal lending event: %w", err)
	}
	return event, nil
}
