package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	waLog "go.mau.fi/whatsmeow/util/log"

	"chatcache/internal/chat"
	"chatcache/internal/utils/retry"
)

type recordingHandler struct {
	mu   sync.Mutex
	seen []string
}

func (h *recordingHandler) Handle(_ context.Context, env chat.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case env.Online != nil && *env.Online:
		h.seen = append(h.seen, "online")
	case env.Online != nil:
		h.seen = append(h.seen, "offline")
	case env.Message != nil:
		h.seen = append(h.seen, env.Type+":"+env.Message.ID)
	default:
		h.seen = append(h.seen, env.Type)
	}
}

func (h *recordingHandler) snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen...)
}

// drain reads until the client goes away.
func drain(ctx context.Context, conn *websocket.Conn) {
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func TestRunDeliversEventsAndReconnects(t *testing.T) {
	var connections atomic.Int32
	var gotKey, gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey.Store(r.URL.Query().Get("api_key"))
		gotAuth.Store(r.Header.Get("Authorization"))
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		if connections.Add(1) == 1 {
			ctx := r.Context()
			_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"message.new","cid":"messaging:1","message":{"id":"m1"}}`))
			_ = conn.Write(ctx, websocket.MessageText, []byte(`not json`))
			_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"health.check"}`))
			_ = conn.Close(websocket.StatusGoingAway, "restart")
			return
		}
		drain(r.Context(), conn)
	}))
	defer srv.Close()

	handler := &recordingHandler{}
	tr, err := New(Config{
		URL:     "ws" + strings.TrimPrefix(srv.URL, "http"),
		APIKey:  "key",
		Token:   "jwt",
		Backoff: retry.Config{InitialWait: 5 * time.Millisecond, MaxWait: 20 * time.Millisecond, Multiplier: 2},
	}, handler, waLog.Noop)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- tr.Run(ctx) }()

	want := []string{"online", "message.new:m1", "health.check", "offline", "online"}
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, handler.snapshot())
	}, 5*time.Second, 10*time.Millisecond)
	assert.True(t, tr.Healthy())
	assert.Equal(t, "key", gotKey.Load())
	assert.Equal(t, "jwt", gotAuth.Load())

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, tr.Healthy())
}

func TestRunRetriesUntilServerIsUp(t *testing.T) {
	var failures atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failures.Add(1) <= 2 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		drain(r.Context(), conn)
	}))
	defer srv.Close()

	handler := &recordingHandler{}
	tr, err := New(Config{
		URL:     "ws" + strings.TrimPrefix(srv.URL, "http"),
		Backoff: retry.Config{InitialWait: 5 * time.Millisecond, MaxWait: 10 * time.Millisecond, Multiplier: 2},
	}, handler, waLog.Noop)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = tr.Run(ctx) }()

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"online"}, handler.snapshot())
	}, 5*time.Second, 10*time.Millisecond)
	assert.True(t, tr.Healthy())
	assert.GreaterOrEqual(t, failures.Load(), int32(3))
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(Config{}, &recordingHandler{}, waLog.Noop)
	assert.Error(t, err)
}
