package store

import (
	"context"
	"fmt"
	"time"

	"chatcache/internal/chat"
	"chatcache/internal/data/mapper"
	"chatcache/internal/data/query"
	"chatcache/internal/data/schema"
)

// TaskStore persists pending tasks.
type TaskStore struct {
	store *Store
}

// Add persists a task and returns its id.
func (s *TaskStore) Add(ctx context.Context, task chat.PendingTask) (int64, error) {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	task.ID = 0
	stmt, err := query.Insert(schema.PendingTasks, mapper.PendingTaskToStorable(task), "id")
	if err != nil {
		return 0, err
	}
	rows, err := s.store.exec.ExecuteOne(ctx, stmt)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("failed to add pending task: no id returned")
	}
	return mapper.Int(rows[0], "id"), nil
}

// Delete removes a task.
func (s *TaskStore) Delete(ctx context.Context, id int64, flush bool) ([]query.Statement, error) {
	var b statements
	b.delete(schema.PendingTasks, query.Predicate{"id": id})
	return s.store.apply(ctx, &b, flush)
}

// DeleteForMessage removes every task referencing messageID.
func (s *TaskStore) DeleteForMessage(ctx context.Context, messageID string, flush bool) ([]query.Statement, error) {
	var b statements
	b.delete(schema.PendingTasks, query.Predicate{"messageId": messageID})
	return s.store.apply(ctx, &b, flush)
}

// All returns every task, oldest first.
func (s *TaskStore) All(ctx context.Context) ([]chat.PendingTask, error) {
	return s.list(ctx, nil)
}

// ForMessage returns tasks referencing messageID, oldest first.
func (s *TaskStore) ForMessage(ctx context.Context, messageID string) ([]chat.PendingTask, error) {
	return s.list(ctx, query.Predicate{"messageId": messageID})
}

func (s *TaskStore) list(ctx context.Context, p query.Predicate) ([]chat.PendingTask, error) {
	rows, err := s.store.rows(ctx, schema.PendingTasks, p,
		query.OrderBy{Column: "createdAt"}, query.OrderBy{Column: "id"})
	if err != nil {
		return nil, err
	}
	tasks := make([]chat.PendingTask, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, mapper.StorableToPendingTask(row))
	}
	return tasks, nil
}
