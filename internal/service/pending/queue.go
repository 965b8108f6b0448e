// Package pending queues user mutations made while offline and replays them
// against the backend in the order they were made.
package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	waLog "go.mau.fi/whatsmeow/util/log"

	"chatcache/internal/chat"
	"chatcache/internal/client"
	"chatcache/internal/data/store"
)

// DefaultCooldown is the delay between two replayed tasks.
const DefaultCooldown = 500 * time.Millisecond

// ErrInvalidTask is returned by Execute for tasks that can never be replayed:
// unknown types and undecodable payloads. Drain drops them.
var ErrInvalidTask = errors.New("invalid pending task")

// Executor performs the backend call behind each task type.
type Executor interface {
	SendReaction(ctx context.Context, messageID string, p chat.SendReactionPayload) error
	DeleteReaction(ctx context.Context, messageID, reactionType string) error
	DeleteMessage(ctx context.Context, messageID string, hard bool) error
	SendMessage(ctx context.Context, channelType, channelID string, msg chat.Message) error
}

// Queue persists pending tasks and drains them.
type Queue struct {
	tasks    *store.TaskStore
	executor Executor
	cooldown time.Duration
	log      waLog.Logger

	drainMu sync.Mutex
}

// NewQueue creates a queue. A negative cooldown selects DefaultCooldown.
func NewQueue(tasks *store.TaskStore, executor Executor, cooldown time.Duration, log waLog.Logger) *Queue {
	if cooldown < 0 {
		cooldown = DefaultCooldown
	}
	return &Queue{
		tasks:    tasks,
		executor: executor,
		cooldown: cooldown,
		log:      log.Sub("PendingQueue"),
	}
}

// Enqueue persists task and returns a function that removes it again. The
// caller invokes it once the matching backend call has succeeded.
func (q *Queue) Enqueue(ctx context.Context, task chat.PendingTask) (func(context.Context) error, error) {
	id, err := q.tasks.Add(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue %s task: %w", task.Type, err)
	}
	q.log.Debugf("Queued %s task %d for message %s", task.Type, id, task.MessageID)
	return func(ctx context.Context) error {
		_, err := q.tasks.Delete(ctx, id, true)
		return err
	}, nil
}

// QueueTask persists task, executes it and removes it once the backend has
// applied it. A failed call leaves the task queued for the next drain.
func (q *Queue) QueueTask(ctx context.Context, task chat.PendingTask) error {
	unqueue, err := q.Enqueue(ctx, task)
	if err != nil {
		return err
	}
	if err := q.Execute(ctx, task); err != nil && !errors.Is(err, client.ErrAlreadyApplied) {
		return err
	}
	return unqueue(ctx)
}

// Drain replays every queued task, oldest first, waiting the cooldown
// between tasks. A task that succeeds or was already applied is removed; any
// other failure stops the drain and leaves the rest queued.
func (q *Queue) Drain(ctx context.Context) error {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	tasks, err := q.tasks.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to read pending tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil
	}
	q.log.Infof("Draining %d pending tasks", len(tasks))

	for i, task := range tasks {
		if i > 0 && q.cooldown > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(q.cooldown):
			}
		}

		err := q.Execute(ctx, task)
		switch {
		case err == nil:
		case errors.Is(err, client.ErrAlreadyApplied):
			q.log.Debugf("Task %d was already applied", task.ID)
		case errors.Is(err, ErrInvalidTask):
			q.log.Warnf("Dropping task %d: %v", task.ID, err)
		default:
			q.log.Warnf("Task %d (%s) failed, %d tasks left queued: %v", task.ID, task.Type, len(tasks)-i, err)
			return fmt.Errorf("failed to replay %s task %d: %w", task.Type, task.ID, err)
		}
		if _, err := q.tasks.Delete(ctx, task.ID, true); err != nil {
			return fmt.Errorf("failed to remove task %d: %w", task.ID, err)
		}
	}
	q.log.Infof("Drained %d pending tasks", len(tasks))
	return nil
}

// DropForMessage removes every task referencing messageID.
func (q *Queue) DropForMessage(ctx context.Context, messageID string) error {
	_, err := q.tasks.DeleteForMessage(ctx, messageID, true)
	return err
}

// ForMessage lists the tasks still queued for messageID.
func (q *Queue) ForMessage(ctx context.Context, messageID string) ([]chat.PendingTask, error) {
	return q.tasks.ForMessage(ctx, messageID)
}

// Execute performs the backend call for task.
func (q *Queue) Execute(ctx context.Context, task chat.PendingTask) error {
	switch task.Type {
	case chat.TaskSendReaction:
		var p chat.SendReactionPayload
		if err := decode(task, &p); err != nil {
			return err
		}
		return q.executor.SendReaction(ctx, task.MessageID, p)

	case chat.TaskDeleteReaction:
		var p chat.DeleteReactionPayload
		if err := decode(task, &p); err != nil {
			return err
		}
		return q.executor.DeleteReaction(ctx, task.MessageID, p.ReactionType)

	case chat.TaskDeleteMessage:
		var p chat.DeleteMessagePayload
		if err := decode(task, &p); err != nil {
			return err
		}
		return q.executor.DeleteMessage(ctx, task.MessageID, p.HardDelete)

	case chat.TaskSendMessage:
		var p chat.SendMessagePayload
		if err := decode(task, &p); err != nil {
			return err
		}
		return q.executor.SendMessage(ctx, task.ChannelType, task.ChannelID, p.Message)
	}
	return fmt.Errorf("%w: unknown type %q", ErrInvalidTask, task.Type)
}

func decode(task chat.PendingTask, v any) error {
	if len(task.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(task.Payload, v); err != nil {
		return fmt.Errorf("%w: %s payload: %w", ErrInvalidTask, task.Type, err)
	}
	return nil
}
