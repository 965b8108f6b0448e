package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	waLog "go.mau.fi/whatsmeow/util/log"

	"chatcache/internal/chat"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, APIKey: "key", Token: "jwt"}, waLog.Noop)
	require.NoError(t, err)
	return c
}

func TestSync(t *testing.T) {
	since := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sync", r.URL.Path)
		assert.Equal(t, "key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "jwt", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []any{"messaging:1"}, body["channel_cids"])
		assert.Equal(t, "2024-01-02T03:04:05Z", body["last_sync_at"])

		_, _ = io.WriteString(w, `{"events":[{"type":"message.new","cid":"messaging:1","message":{"id":"m1","text":"hi"}}]}`)
	})

	events, err := c.Sync(context.Background(), []string{"messaging:1"}, since)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "message.new", events[0].Type)
	assert.Equal(t, "hi", events[0].Message.Text)
}

func TestSyncWindowTooLarge(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"code":4,"message":"last_sync_at is too old"}`)
	})
	_, err := c.Sync(context.Background(), []string{"messaging:1"}, time.Now())
	assert.ErrorIs(t, err, ErrSyncWindowTooLarge)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestAlreadyApplied(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/messages/m1/reaction/like", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"code":4,"message":"reaction does not exist"}`)
	})
	err := c.DeleteReaction(context.Background(), "m1", "like")
	assert.ErrorIs(t, err, ErrAlreadyApplied)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestChannelNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels/messaging/gone/query", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "not here")
	})
	_, err := c.Channel(context.Background(), "messaging", "gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChannel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"channel":{"cid":"messaging:1","id":"1","type":"messaging","name":"general"},"members":[{"user_id":"u1"}]}`)
	})
	st, err := c.Channel(context.Background(), "messaging", "1")
	require.NoError(t, err)
	assert.Equal(t, "messaging:1", st.Channel.CID)
	assert.JSONEq(t, `"general"`, string(st.Channel.ExtraData["name"]))
	require.Len(t, st.Members, 1)
}

func TestSendMessageAndDelete(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path+" "+r.URL.Query().Get("hard"))
		_, _ = io.WriteString(w, `{}`)
	})
	ctx := context.Background()
	require.NoError(t, c.SendMessage(ctx, "messaging", "1", chat.Message{ID: "m1", Text: "hi"}))
	require.NoError(t, c.DeleteMessage(ctx, "m1", true))
	require.NoError(t, c.SendReaction(ctx, "m1", chat.SendReactionPayload{Reaction: chat.Reaction{Type: "like"}}))
	assert.Equal(t, []string{
		"POST /channels/messaging/1/message ",
		"DELETE /messages/m1 true",
		"POST /messages/m1/reaction ",
	}, paths)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{}, waLog.Noop)
	assert.Error(t, err)
}
