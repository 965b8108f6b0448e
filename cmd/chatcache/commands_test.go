package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatcache/internal/app"
	"chatcache/internal/chat"
	"chatcache/internal/data/store"
	"chatcache/internal/infra/config"
	"chatcache/internal/infra/logger"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(viper.New())
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func seedDatabase(t *testing.T, path string) {
	t.Helper()
	v := config.NewViper()
	v.Set("user.id", "me")
	v.Set("database.path", path)
	cfg, err := config.Load(v)
	require.NoError(t, err)

	ctx := context.Background()
	stores, err := app.OpenStores(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	defer stores.Store.Engine().Close()

	_, err = stores.Channels.Upsert(ctx, []chat.ChannelState{{
		Channel: &chat.Channel{CID: "messaging:general", Type: "messaging", ID: "general"},
		Members: []chat.Member{{UserID: "me"}, {UserID: "bob"}},
		Read:    []chat.Read{{User: &chat.User{ID: "me"}, UnreadMessages: 3}},
	}}, store.UpsertOptions{}, true)
	require.NoError(t, err)
	for _, id := range []string{"m1", "m2"} {
		_, err = stores.Tasks.Add(ctx, chat.PendingTask{Type: chat.TaskDeleteMessage, MessageID: id})
		require.NoError(t, err)
	}
}

func TestTasksAndChannels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	seedDatabase(t, path)
	base := []string{"--database-path", path, "--user-id", "me", "--log-level", "error"}

	out := execute(t, append([]string{"tasks"}, base...)...)
	assert.Contains(t, out, "delete-message")
	assert.Contains(t, out, "m1")
	assert.Contains(t, out, "m2")

	out = execute(t, append([]string{"tasks", "--message", "m2"}, base...)...)
	assert.NotContains(t, out, "m1")

	execute(t, append([]string{"tasks", "--drop", "m1"}, base...)...)
	out = execute(t, append([]string{"tasks"}, base...)...)
	assert.NotContains(t, out, "m1")

	out = execute(t, append([]string{"channels"}, base...)...)
	assert.Regexp(t, `messaging:general\s+2\s+0\s+3\s+false`, out)
}

func TestReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	seedDatabase(t, path)
	base := []string{"--database-path", path, "--user-id", "me", "--log-level", "error"}

	execute(t, append([]string{"reset"}, base...)...)
	out := execute(t, append([]string{"channels"}, base...)...)
	assert.NotContains(t, out, "messaging:general")
	out = execute(t, append([]string{"tasks"}, base...)...)
	assert.Contains(t, out, "m2")

	execute(t, append([]string{"reset", "--all"}, base...)...)
	out = execute(t, append([]string{"tasks"}, base...)...)
	assert.NotContains(t, out, "m2")
}
