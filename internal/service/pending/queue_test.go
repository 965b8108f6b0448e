package pending

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	waLog "go.mau.fi/whatsmeow/util/log"

	"chatcache/internal/chat"
	"chatcache/internal/client"
	"chatcache/internal/data/storage"
	"chatcache/internal/data/store"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type call struct {
	kind, messageID, arg string
}

type stubExecutor struct {
	calls []call
	fail  map[string]error
}

func (s *stubExecutor) record(kind, messageID, arg string) error {
	s.calls = append(s.calls, call{kind, messageID, arg})
	return s.fail[messageID]
}

func (s *stubExecutor) SendReaction(_ context.Context, messageID string, p chat.SendReactionPayload) error {
	return s.record("send-reaction", messageID, p.Reaction.Type)
}

func (s *stubExecutor) DeleteReaction(_ context.Context, messageID, reactionType string) error {
	return s.record("delete-reaction", messageID, reactionType)
}

func (s *stubExecutor) DeleteMessage(_ context.Context, messageID string, hard bool) error {
	arg := "soft"
	if hard {
		arg = "hard"
	}
	return s.record("delete-message", messageID, arg)
}

func (s *stubExecutor) SendMessage(_ context.Context, channelType, channelID string, msg chat.Message) error {
	return s.record("send-message", msg.ID, chat.CID(channelType, channelID))
}

func newTestQueue(t *testing.T) (*Queue, *store.TaskStore, *stubExecutor) {
	t.Helper()
	engine, err := storage.New(storage.MemoryPath, "sqlite3", waLog.Noop)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, engine.Open(ctx))
	require.NoError(t, engine.Bootstrap(ctx))
	t.Cleanup(func() { _ = engine.Close() })

	tasks := store.NewContainer(store.NewStore(engine, waLog.Noop)).Tasks
	exec := &stubExecutor{fail: map[string]error{}}
	return NewQueue(tasks, exec, 0, waLog.Noop), tasks, exec
}

func payload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestDrainStopsAtFirstFailure(t *testing.T) {
	q, tasks, exec := newTestQueue(t)
	ctx := context.Background()
	for i, id := range []string{"t1", "t2", "t3"} {
		_, err := q.Enqueue(ctx, chat.PendingTask{
			Type:      chat.TaskDeleteMessage,
			MessageID: id,
			CreatedAt: t0.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}
	exec.fail["t2"] = errors.New("connection reset")

	err := q.Drain(ctx)
	require.Error(t, err)
	assert.Equal(t, []call{{"delete-message", "t1", "soft"}, {"delete-message", "t2", "soft"}}, exec.calls)

	left, err := tasks.All(ctx)
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, "t2", left[0].MessageID)
	assert.Equal(t, "t3", left[1].MessageID)

	delete(exec.fail, "t2")
	exec.calls = nil
	require.NoError(t, q.Drain(ctx))
	assert.Equal(t, []call{{"delete-message", "t2", "soft"}, {"delete-message", "t3", "soft"}}, exec.calls)
	left, err = tasks.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestDrainTreatsAlreadyAppliedAsSuccess(t *testing.T) {
	q, tasks, exec := newTestQueue(t)
	ctx := context.Background()
	_, err := q.Enqueue(ctx, chat.PendingTask{
		Type:      chat.TaskDeleteReaction,
		MessageID: "m1",
		Payload:   payload(t, chat.DeleteReactionPayload{ReactionType: "like"}),
	})
	require.NoError(t, err)
	exec.fail["m1"] = &client.APIError{StatusCode: 400, Code: client.CodeInputError, Message: "reaction does not exist"}

	require.NoError(t, q.Drain(ctx))
	assert.Equal(t, []call{{"delete-reaction", "m1", "like"}}, exec.calls)
	left, err := tasks.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestDrainDropsInvalidTasks(t *testing.T) {
	q, tasks, exec := newTestQueue(t)
	ctx := context.Background()
	_, err := q.Enqueue(ctx, chat.PendingTask{Type: "pin-message", MessageID: "m1", CreatedAt: t0})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, chat.PendingTask{Type: chat.TaskSendReaction, MessageID: "m2",
		Payload: json.RawMessage(`[1,2]`), CreatedAt: t0.Add(time.Second)})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, chat.PendingTask{Type: chat.TaskSendReaction, MessageID: "m3",
		Payload:   payload(t, chat.SendReactionPayload{Reaction: chat.Reaction{Type: "love"}}),
		CreatedAt: t0.Add(2 * time.Second)})
	require.NoError(t, err)

	require.NoError(t, q.Drain(ctx))
	assert.Equal(t, []call{{"send-reaction", "m3", "love"}}, exec.calls)
	left, err := tasks.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestEnqueueUnqueue(t *testing.T) {
	q, tasks, _ := newTestQueue(t)
	ctx := context.Background()
	unqueue, err := q.Enqueue(ctx, chat.PendingTask{Type: chat.TaskDeleteMessage, MessageID: "m1"})
	require.NoError(t, err)

	pending, err := q.ForMessage(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, chat.TaskDeleteMessage, pending[0].Type)

	require.NoError(t, unqueue(ctx))
	left, err := tasks.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestQueueTask(t *testing.T) {
	q, tasks, exec := newTestQueue(t)
	ctx := context.Background()

	msg := chat.Message{ID: "m1", Text: "hello"}
	require.NoError(t, q.QueueTask(ctx, chat.PendingTask{
		Type:        chat.TaskSendMessage,
		ChannelType: "messaging",
		ChannelID:   "general",
		MessageID:   "m1",
		Payload:     payload(t, chat.SendMessagePayload{Message: msg}),
	}))
	assert.Equal(t, []call{{"send-message", "m1", "messaging:general"}}, exec.calls)

	exec.fail["m2"] = errors.New("offline")
	err := q.QueueTask(ctx, chat.PendingTask{Type: chat.TaskDeleteMessage, MessageID: "m2",
		Payload: payload(t, chat.DeleteMessagePayload{HardDelete: true})})
	require.Error(t, err)

	left, err := tasks.All(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "m2", left[0].MessageID)
}

func TestDropForMessage(t *testing.T) {
	q, tasks, _ := newTestQueue(t)
	ctx := context.Background()
	for _, id := range []string{"m1", "m2", "m1"} {
		_, err := q.Enqueue(ctx, chat.PendingTask{Type: chat.TaskDeleteMessage, MessageID: id})
		require.NoError(t, err)
	}
	require.NoError(t, q.DropForMessage(ctx, "m1"))
	left, err := tasks.All(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "m2", left[0].MessageID)
}

func TestDrainWaitsBetweenTasks(t *testing.T) {
	q, _, exec := newTestQueue(t)
	q.cooldown = 20 * time.Millisecond
	ctx := context.Background()
	for i := range 3 {
		_, err := q.Enqueue(ctx, chat.PendingTask{Type: chat.TaskDeleteMessage, MessageID: "m",
			CreatedAt: t0.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
	}

	start := time.Now()
	require.NoError(t, q.Drain(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Len(t, exec.calls, 3)
}
