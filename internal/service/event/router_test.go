package event

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	waLog "go.mau.fi/whatsmeow/util/log"

	"chatcache/internal/chat"
	"chatcache/internal/data/query"
	"chatcache/internal/data/schema"
	"chatcache/internal/data/storage"
	"chatcache/internal/data/store"
)

const me = "me"

type fakeFetcher struct {
	channels map[string]*chat.ChannelState
	calls    []string
}

func (f *fakeFetcher) Channel(_ context.Context, channelType, channelID string) (*chat.ChannelState, error) {
	cid := chat.CID(channelType, channelID)
	f.calls = append(f.calls, cid)
	st, ok := f.channels[cid]
	if !ok {
		return nil, errors.New("backend unavailable")
	}
	return st, nil
}

func newTestRouter(t *testing.T) (*Router, *store.Container, *fakeFetcher) {
	t.Helper()
	engine, err := storage.New(storage.MemoryPath, "sqlite3", waLog.Noop)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, engine.Open(ctx))
	require.NoError(t, engine.Bootstrap(ctx))
	t.Cleanup(func() { _ = engine.Close() })

	stores := store.NewContainer(store.NewStore(engine, waLog.Noop))
	fetcher := &fakeFetcher{channels: map[string]*chat.ChannelState{}}
	return NewRouter(stores, fetcher, me, waLog.Noop), stores, fetcher
}

func envelope(t *testing.T, raw string) chat.Envelope {
	t.Helper()
	var env chat.Envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	return env
}

func handle(t *testing.T, r *Router, raw string) []query.Statement {
	t.Helper()
	stmts, err := r.Handle(context.Background(), envelope(t, raw), true)
	require.NoError(t, err)
	return stmts
}

func rows(t *testing.T, stores *store.Container, table string, p query.Predicate) []schema.Row {
	t.Helper()
	stmt, err := query.Select(table, nil, p)
	require.NoError(t, err)
	out, err := stores.Store.Engine().ExecuteOne(context.Background(), stmt)
	require.NoError(t, err)
	return out
}

func seedChannel(t *testing.T, r *Router, cid string) {
	t.Helper()
	handle(t, r, `{"type":"channel.updated","cid":"`+cid+`","channel":{"cid":"`+cid+`","type":"messaging","id":"x"}}`)
}

func TestGuardBackfillsMissingChannel(t *testing.T) {
	r, stores, fetcher := newTestRouter(t)
	fetcher.channels["messaging:new"] = &chat.ChannelState{
		Channel: &chat.Channel{CID: "messaging:new", Type: "messaging", ID: "new", MemberCount: 2},
		Members: []chat.Member{{UserID: me}, {UserID: "bob"}},
	}

	handle(t, r, `{"type":"message.new","cid":"messaging:new","message":{"id":"m1","text":"hi","user":{"id":"bob"},"created_at":"2024-05-01T12:00:00Z"}}`)

	assert.Equal(t, []string{"messaging:new"}, fetcher.calls)
	channels := rows(t, stores, schema.Channels, query.Predicate{"cid": "messaging:new"})
	require.Len(t, channels, 1)
	msgs := rows(t, stores, schema.Messages, query.Predicate{"id": "m1"})
	require.Len(t, msgs, 1)
	assert.Equal(t, channels[0]["cid"], msgs[0]["cid"])
	assert.Len(t, rows(t, stores, schema.Members, query.Predicate{"cid": "messaging:new"}), 2)
}

func TestGuardDropsWhenChannelCannotBeFetched(t *testing.T) {
	r, stores, fetcher := newTestRouter(t)

	stmts := handle(t, r, `{"type":"message.new","cid":"messaging:gone","message":{"id":"m1","user":{"id":"bob"}}}`)
	assert.Empty(t, stmts)
	assert.Equal(t, []string{"messaging:gone"}, fetcher.calls)
	assert.Empty(t, rows(t, stores, schema.Messages, nil))

	stmts = handle(t, r, `{"type":"member.added","cid":"not-addressable","member":{"user_id":"bob"}}`)
	assert.Empty(t, stmts)
	assert.Len(t, fetcher.calls, 1)
}

func TestMalformedEventsAreIgnored(t *testing.T) {
	r, _, _ := newTestRouter(t)
	for _, raw := range []string{
		`{"type":"message.new","cid":"messaging:1"}`,
		`{"type":"message.read","cid":"messaging:1"}`,
		`{"type":"member.removed","cid":"messaging:1"}`,
		`{"type":"typing.start","cid":"messaging:1"}`,
		`{}`,
	} {
		stmts, err := r.Handle(context.Background(), envelope(t, raw), true)
		assert.NoError(t, err, raw)
		assert.Empty(t, stmts, raw)
	}
}

func TestFlushFalseReturnsStatementsOnly(t *testing.T) {
	r, stores, _ := newTestRouter(t)
	stmts, err := r.Handle(context.Background(),
		envelope(t, `{"type":"channel.updated","cid":"messaging:1","channel":{"cid":"messaging:1"}}`), false)
	require.NoError(t, err)
	require.NotEmpty(t, stmts)
	assert.Empty(t, rows(t, stores, schema.Channels, nil))
}

func TestUnreadCountIsIdempotent(t *testing.T) {
	r, stores, _ := newTestRouter(t)
	seedChannel(t, r, "messaging:1")

	evt := `{"type":"message.new","cid":"messaging:1","message":{"id":"m1","text":"hi","user":{"id":"bob"},"created_at":"2024-05-01T12:00:00Z"}}`
	handle(t, r, evt)
	handle(t, r, evt)

	read := rows(t, stores, schema.Reads, query.Predicate{"cid": "messaging:1", "userId": me})
	require.Len(t, read, 1)
	assert.EqualValues(t, 1, read[0]["unreadMessages"])

	handle(t, r, `{"type":"message.new","cid":"messaging:1","message":{"id":"m2","user":{"id":"bob"},"created_at":"2024-05-01T12:01:00Z"}}`)
	read = rows(t, stores, schema.Reads, query.Predicate{"cid": "messaging:1", "userId": me})
	assert.EqualValues(t, 2, read[0]["unreadMessages"])

	handle(t, r, `{"type":"message.new","cid":"messaging:1","message":{"id":"m3","user":{"id":"me"},"created_at":"2024-05-01T12:02:00Z"}}`)
	read = rows(t, stores, schema.Reads, query.Predicate{"cid": "messaging:1", "userId": me})
	assert.EqualValues(t, 0, read[0]["unreadMessages"])
	assert.Equal(t, "m3", read[0]["lastReadMessageId"])
	assert.Equal(t, "2024-05-01T12:02:00.000Z", read[0]["lastRead"])

	ch := rows(t, stores, schema.Channels, query.Predicate{"cid": "messaging:1"})
	assert.Equal(t, "2024-05-01T12:02:00.000Z", ch[0]["lastMessageAt"])
}

func TestThreadRepliesAreNotStored(t *testing.T) {
	r, stores, _ := newTestRouter(t)
	seedChannel(t, r, "messaging:1")
	handle(t, r, `{"type":"message.new","cid":"messaging:1","message":{"id":"r1","parent_id":"m1","user":{"id":"bob"}}}`)
	assert.Empty(t, rows(t, stores, schema.Messages, nil))
}

func TestReadEvents(t *testing.T) {
	r, stores, _ := newTestRouter(t)
	seedChannel(t, r, "messaging:1")

	handle(t, r, `{"type":"notification.mark_unread","cid":"messaging:1","user":{"id":"me"},"unread_messages":5,"last_read_message_id":"m9","last_read_at":"2024-05-01T10:00:00Z"}`)
	read := rows(t, stores, schema.Reads, query.Predicate{"userId": me})
	require.Len(t, read, 1)
	assert.EqualValues(t, 5, read[0]["unreadMessages"])
	assert.Equal(t, "m9", read[0]["lastReadMessageId"])

	handle(t, r, `{"type":"message.read","cid":"messaging:1","user":{"id":"me"},"last_read_message_id":"m10","received_at":"2024-05-01T11:00:00Z"}`)
	read = rows(t, stores, schema.Reads, query.Predicate{"userId": me})
	assert.EqualValues(t, 0, read[0]["unreadMessages"])
	assert.Equal(t, "m10", read[0]["lastReadMessageId"])
	assert.Equal(t, "2024-05-01T11:00:00.000Z", read[0]["lastRead"])
}

func TestReactionEventReplacesSnapshot(t *testing.T) {
	r, stores, _ := newTestRouter(t)
	seedChannel(t, r, "messaging:1")
	handle(t, r, `{"type":"message.new","cid":"messaging:1","message":{"id":"m1","user":{"id":"bob"},
		"latest_reactions":[{"user_id":"u1","type":"A"},{"user_id":"u2","type":"B"}]}}`)

	handle(t, r, `{"type":"reaction.new","cid":"messaging:1","reaction":{"user_id":"u3","type":"C"},
		"message":{"id":"m1","cid":"messaging:1","user":{"id":"bob"},
		"reaction_groups":{"B":{"count":1,"sum_scores":1},"C":{"count":1,"sum_scores":1}},
		"latest_reactions":[{"user_id":"u2","type":"B"},{"user_id":"u3","type":"C"}]}}`)

	var got []string
	for _, row := range rows(t, stores, schema.Reactions, query.Predicate{"messageId": "m1"}) {
		got = append(got, row["userId"].(string)+"/"+row["type"].(string))
	}
	sort.Strings(got)
	assert.Equal(t, []string{"u2/B", "u3/C"}, got)

	msg := rows(t, stores, schema.Messages, query.Predicate{"id": "m1"})
	assert.JSONEq(t, `{"B":{"count":1,"sum_scores":1},"C":{"count":1,"sum_scores":1}}`, msg[0]["reactionGroups"].(string))
}

func TestMessageDeletedLeavesTombstone(t *testing.T) {
	r, stores, _ := newTestRouter(t)
	seedChannel(t, r, "messaging:C1")
	handle(t, r, `{"type":"message.new","cid":"messaging:C1","message":{"id":"M1","text":"hi","type":"regular","user":{"id":"bob"},"created_at":"2024-05-01T12:00:00Z"}}`)
	handle(t, r, `{"type":"message.new","cid":"messaging:C1","message":{"id":"M2","text":"bye","type":"regular","user":{"id":"bob"},"created_at":"2024-05-01T12:01:00Z"}}`)

	handle(t, r, `{"type":"message.deleted","cid":"messaging:C1","message":{"id":"M2"},"created_at":"2024-05-01T13:00:00Z"}`)

	msgs, err := stores.Messages.ForChannels(context.Background(), []string{"messaging:C1"}, store.ReadOptions{})
	require.NoError(t, err)
	list := msgs["messaging:C1"]
	require.Len(t, list, 2)
	assert.Equal(t, "hi", list[0].Text)
	assert.Equal(t, chat.MessageTypeRegular, list[0].Type)
	assert.True(t, list[0].DeletedAt.IsZero())
	assert.Equal(t, "M2", list[1].ID)
	assert.Equal(t, chat.MessageTypeDeleted, list[1].Type)
	assert.False(t, list[1].DeletedAt.IsZero())

	handle(t, r, `{"type":"message.deleted","cid":"messaging:C1","hard_delete":true,"message":{"id":"M2"}}`)
	assert.Empty(t, rows(t, stores, schema.Messages, query.Predicate{"id": "M2"}))
}

func TestTruncationRecountsUnread(t *testing.T) {
	r, stores, _ := newTestRouter(t)
	seedChannel(t, r, "messaging:1")
	for i, at := range []string{"10:00", "11:00", "12:00"} {
		handle(t, r, `{"type":"message.new","cid":"messaging:1","message":{"id":"m`+string(rune('1'+i))+`","user":{"id":"bob"},"created_at":"2024-05-01T`+at+`:00Z"}}`)
	}
	read := rows(t, stores, schema.Reads, query.Predicate{"userId": me})
	require.EqualValues(t, 3, read[0]["unreadMessages"])

	handle(t, r, `{"type":"channel.truncated","cid":"messaging:1","channel":{"cid":"messaging:1","truncated_at":"2024-05-01T10:30:00Z"}}`)
	msgs := rows(t, stores, schema.Messages, nil)
	assert.Len(t, msgs, 2)
	read = rows(t, stores, schema.Reads, query.Predicate{"userId": me})
	assert.EqualValues(t, 2, read[0]["unreadMessages"])

	handle(t, r, `{"type":"channel.truncated","cid":"messaging:1"}`)
	assert.Empty(t, rows(t, stores, schema.Messages, nil))
	read = rows(t, stores, schema.Reads, query.Predicate{"userId": me})
	assert.EqualValues(t, 0, read[0]["unreadMessages"])
}

func TestHiddenAndVisible(t *testing.T) {
	r, stores, _ := newTestRouter(t)
	seedChannel(t, r, "messaging:1")
	handle(t, r, `{"type":"message.new","cid":"messaging:1","message":{"id":"m1","user":{"id":"bob"}}}`)

	handle(t, r, `{"type":"channel.hidden","cid":"messaging:1"}`)
	ch := rows(t, stores, schema.Channels, query.Predicate{"cid": "messaging:1"})
	assert.EqualValues(t, 1, ch[0]["hidden"])
	assert.Len(t, rows(t, stores, schema.Messages, nil), 1)

	handle(t, r, `{"type":"channel.visible","channel_type":"messaging","channel_id":"1"}`)
	ch = rows(t, stores, schema.Channels, query.Predicate{"cid": "messaging:1"})
	assert.EqualValues(t, 0, ch[0]["hidden"])
}

func TestChannelRemovalAndMembers(t *testing.T) {
	r, stores, _ := newTestRouter(t)
	seedChannel(t, r, "messaging:1")
	handle(t, r, `{"type":"member.added","cid":"messaging:1","member":{"user_id":"bob","user":{"id":"bob","name":"Bob"}}}`)
	handle(t, r, `{"type":"member.added","cid":"messaging:1","member":{"user_id":"carol"}}`)
	handle(t, r, `{"type":"member.removed","cid":"messaging:1","user":{"id":"carol"}}`)
	members := rows(t, stores, schema.Members, nil)
	require.Len(t, members, 1)
	assert.Equal(t, "bob", members[0]["userId"])

	handle(t, r, `{"type":"message.new","cid":"messaging:1","message":{"id":"m1","user":{"id":"bob"}}}`)
	handle(t, r, `{"type":"notification.removed_from_channel","cid":"messaging:1"}`)
	assert.Empty(t, rows(t, stores, schema.Channels, nil))
	assert.Empty(t, rows(t, stores, schema.Messages, nil))
	assert.Empty(t, rows(t, stores, schema.Members, nil))
}

func TestChannelsQueried(t *testing.T) {
	r, stores, _ := newTestRouter(t)
	seedChannel(t, r, "messaging:1")
	handle(t, r, `{"type":"message.new","cid":"messaging:1","message":{"id":"stale","user":{"id":"bob"}}}`)

	_, err := r.Apply(context.Background(), ChannelsQueried{Result: chat.QueriedChannels{
		IsLatestMessagesSet: true,
		Channels: []chat.ChannelState{{
			Channel:  &chat.Channel{CID: "messaging:1", Type: "messaging", ID: "1"},
			Messages: []chat.Message{{ID: "fresh", User: &chat.User{ID: "bob"}}},
		}},
	}}, true)
	require.NoError(t, err)
	msgs := rows(t, stores, schema.Messages, nil)
	require.Len(t, msgs, 1)
	assert.Equal(t, "fresh", msgs[0]["id"])
	assert.Equal(t, "messaging:1", msgs[0]["cid"])
}

func TestDraftAndPollEvents(t *testing.T) {
	r, stores, _ := newTestRouter(t)
	seedChannel(t, r, "messaging:1")

	handle(t, r, `{"type":"draft.updated","draft":{"channel_cid":"messaging:1","message":{"id":"d1","text":"wip"}}}`)
	d, err := stores.Drafts.Get(context.Background(), "messaging:1", "")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "wip", d.Message.Text)

	handle(t, r, `{"type":"draft.deleted","draft":{"channel_cid":"messaging:1","message":{"id":"d1"}}}`)
	d, err = stores.Drafts.Get(context.Background(), "messaging:1", "")
	require.NoError(t, err)
	assert.Nil(t, d)

	handle(t, r, `{"type":"poll.vote_casted","poll":{"id":"p1","name":"Lunch?","vote_count":3,"vote_counts_by_option":{"o1":3}}}`)
	p, err := stores.Polls.Get(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 3, p.VoteCountsByOption["o1"])

	handle(t, r, `{"type":"user.updated","user":{"id":"bob","name":"Robert"}}`)
	users, err := stores.Users.Get(context.Background(), []string{"bob"})
	require.NoError(t, err)
	assert.Equal(t, "Robert", users["bob"].Name)
}

type connectionRecorder struct{ seen []bool }

func (c *connectionRecorder) OnConnectionChanged(_ context.Context, online bool) {
	c.seen = append(c.seen, online)
}

func TestDispatcherRoutesConnectivity(t *testing.T) {
	r, stores, _ := newTestRouter(t)
	rec := &connectionRecorder{}
	d := NewDispatcher(NewEventService(r, waLog.Noop), rec, waLog.Noop)
	ctx := context.Background()

	d.Handle(ctx, envelope(t, `{"type":"connection.changed","online":true}`))
	d.Handle(ctx, envelope(t, `{"type":"health.check"}`))
	d.Handle(ctx, envelope(t, `{"type":"channel.updated","cid":"messaging:1","channel":{"cid":"messaging:1"}}`))
	d.Handle(ctx, envelope(t, `{"type":"connection.changed","online":false}`))

	assert.Equal(t, []bool{true, false}, rec.seen)
	assert.Len(t, rows(t, stores, schema.Channels, nil), 1)
}

func TestPartialChannelUpdateKeepsStoredColumns(t *testing.T) {
	r, stores, _ := newTestRouter(t)
	handle(t, r, `{"type":"channel.updated","cid":"messaging:1","channel":{"cid":"messaging:1","type":"messaging","id":"1",
		"member_count":5,"created_at":"2024-04-01T08:00:00Z","last_message_at":"2024-05-01T09:00:00Z","frozen":true}}`)
	handle(t, r, `{"type":"channel.hidden","cid":"messaging:1"}`)

	handle(t, r, `{"type":"channel.updated","cid":"messaging:1","channel":{"cid":"messaging:1","name":"General"}}`)

	ch := rows(t, stores, schema.Channels, query.Predicate{"cid": "messaging:1"})
	require.Len(t, ch, 1)
	assert.EqualValues(t, 1, ch[0]["hidden"])
	assert.EqualValues(t, 1, ch[0]["frozen"])
	assert.EqualValues(t, 5, ch[0]["memberCount"])
	assert.Equal(t, "2024-04-01T08:00:00.000Z", ch[0]["createdAt"])
	assert.Equal(t, "2024-05-01T09:00:00.000Z", ch[0]["lastMessageAt"])
	assert.Equal(t, "messaging", ch[0]["type"])
	assert.JSONEq(t, `{"name":"General"}`, ch[0]["extraData"].(string))

	// Keys that are present overwrite, false included.
	handle(t, r, `{"type":"channel.updated","cid":"messaging:1","channel":{"cid":"messaging:1","frozen":false,"member_count":6}}`)
	ch = rows(t, stores, schema.Channels, query.Predicate{"cid": "messaging:1"})
	assert.EqualValues(t, 0, ch[0]["frozen"])
	assert.EqualValues(t, 6, ch[0]["memberCount"])
	assert.EqualValues(t, 1, ch[0]["hidden"])
	assert.JSONEq(t, `{"name":"General"}`, ch[0]["extraData"].(string))
}

func TestPartialChannelInsertDerivesTypeAndID(t *testing.T) {
	r, stores, _ := newTestRouter(t)
	handle(t, r, `{"type":"notification.added_to_channel","cid":"team:ops","channel":{"cid":"team:ops"}}`)

	ch := rows(t, stores, schema.Channels, query.Predicate{"cid": "team:ops"})
	require.Len(t, ch, 1)
	assert.Equal(t, "team", ch[0]["type"])
	assert.Equal(t, "ops", ch[0]["id"])
	assert.Equal(t, "", ch[0]["lastMessageAt"])
	assert.EqualValues(t, 0, ch[0]["hidden"])
}

func TestPartialMessageUpdateKeepsStoredColumns(t *testing.T) {
	r, stores, _ := newTestRouter(t)
	seedChannel(t, r, "messaging:1")
	handle(t, r, `{"type":"message.new","cid":"messaging:1","message":{"id":"m1","text":"orig","type":"regular","user":{"id":"bob"},
		"created_at":"2024-05-01T12:00:00Z","pinned":true,"latest_reactions":[{"user_id":"u1","type":"like"}]}}`)

	handle(t, r, `{"type":"message.updated","cid":"messaging:1","message":{"id":"m1","text":"edited"}}`)

	msg := rows(t, stores, schema.Messages, query.Predicate{"id": "m1"})
	require.Len(t, msg, 1)
	assert.Equal(t, "edited", msg[0]["text"])
	assert.Equal(t, "regular", msg[0]["type"])
	assert.Equal(t, "bob", msg[0]["userId"])
	assert.EqualValues(t, 1, msg[0]["pinned"])
	assert.Equal(t, "2024-05-01T12:00:00.000Z", msg[0]["createdAt"])
	assert.Len(t, rows(t, stores, schema.Reactions, query.Predicate{"messageId": "m1"}), 1)

	// An empty reaction list is a snapshot too.
	handle(t, r, `{"type":"reaction.deleted","cid":"messaging:1","message":{"id":"m1","latest_reactions":[]}}`)
	assert.Empty(t, rows(t, stores, schema.Reactions, query.Predicate{"messageId": "m1"}))
	assert.Equal(t, "edited", rows(t, stores, schema.Messages, query.Predicate{"id": "m1"})[0]["text"])
}

func TestPartialMemberUpdateKeepsStoredColumns(t *testing.T) {
	r, stores, _ := newTestRouter(t)
	seedChannel(t, r, "messaging:1")
	handle(t, r, `{"type":"member.added","cid":"messaging:1","member":{"user_id":"bob","channel_role":"channel_moderator","banned":true,"created_at":"2024-04-01T08:00:00Z"}}`)

	handle(t, r, `{"type":"member.updated","cid":"messaging:1","member":{"user_id":"bob","notifications_muted":true}}`)

	members := rows(t, stores, schema.Members, query.Predicate{"cid": "messaging:1", "userId": "bob"})
	require.Len(t, members, 1)
	assert.EqualValues(t, 1, members[0]["notificationsMuted"])
	assert.EqualValues(t, 1, members[0]["banned"])
	assert.Equal(t, "channel_moderator", members[0]["channelRole"])
	assert.Equal(t, "2024-04-01T08:00:00.000Z", members[0]["createdAt"])
}
