package event

import (
	"context"
	"fmt"

	waLog "go.mau.fi/whatsmeow/util/log"

	"chatcache/internal/chat"
	"chatcache/internal/data/mapper"
	"chatcache/internal/data/query"
	"chatcache/internal/data/schema"
	"chatcache/internal/data/store"
)

// ChannelFetcher fetches a channel snapshot from the backend.
type ChannelFetcher interface {
	Channel(ctx context.Context, channelType, channelID string) (*chat.ChannelState, error)
}

// Router maps events onto store writes.
type Router struct {
	stores  *store.Container
	fetcher ChannelFetcher
	userID  string
	log     waLog.Logger
}

// NewRouter creates a router writing on behalf of userID. fetcher may be nil,
// in which case events for unknown channels are dropped.
func NewRouter(stores *store.Container, fetcher ChannelFetcher, userID string, log waLog.Logger) *Router {
	return &Router{
		stores:  stores,
		fetcher: fetcher,
		userID:  userID,
		log:     log.Sub("EventRouter"),
	}
}

// WithStores returns a copy of the router that reads and writes through
// stores, such as a transaction-bound container.
func (r *Router) WithStores(stores *store.Container) *Router {
	c := *r
	c.stores = stores
	return &c
}

// Handle decodes env and applies it. Unknown or malformed envelopes yield no
// statements and no error.
func (r *Router) Handle(ctx context.Context, env chat.Envelope, flush bool) ([]query.Statement, error) {
	evt, ok := Decode(env)
	if !ok {
		r.log.Debugf("Ignoring event %q", env.Type)
		return nil, nil
	}
	return r.Apply(ctx, evt, flush)
}

// Apply returns the statements for evt, executing them when flush is true.
func (r *Router) Apply(ctx context.Context, evt Event, flush bool) ([]query.Statement, error) {
	stmts, err := r.plan(ctx, evt)
	if err != nil {
		return nil, err
	}
	if flush && len(stmts) > 0 {
		if err := r.stores.Store.Execute(ctx, stmts); err != nil {
			return nil, fmt.Errorf("failed to apply %T: %w", evt, err)
		}
	}
	return stmts, nil
}

func (r *Router) plan(ctx context.Context, evt Event) ([]query.Statement, error) {
	switch e := evt.(type) {
	case MessageNew:
		return r.guarded(ctx, e.CID, func() ([]query.Statement, error) { return r.messageNew(ctx, e) })
	case MessageUpdated:
		return r.stores.Messages.Update(ctx, e.Message, false)
	case MessageDeleted:
		return r.stores.Messages.Delete(ctx, e.MessageID, e.DeletedAt, e.Hard, false)
	case MessageRead:
		return r.guarded(ctx, e.CID, func() ([]query.Statement, error) { return r.messageRead(ctx, e) })
	case MarkUnread:
		return r.guarded(ctx, e.CID, func() ([]query.Statement, error) { return r.markUnread(ctx, e) })
	case ReactionChanged:
		return r.stores.Messages.Update(ctx, e.Message, false)
	case ChannelUpserted:
		return r.stores.Channels.UpsertData(ctx, []chat.Channel{e.Channel}, false)
	case ChannelVisibility:
		return r.channelVisibility(ctx, e)
	case ChannelTruncated:
		return r.channelTruncated(ctx, e)
	case ChannelRemoved:
		return r.stores.Channels.Delete(ctx, e.CID, false)
	case ChannelsQueried:
		return r.stores.Channels.Upsert(ctx, e.Result.Channels,
			store.UpsertOptions{IsLatestMessagesSet: e.Result.IsLatestMessagesSet}, false)
	case MemberUpserted:
		return r.guarded(ctx, e.CID, func() ([]query.Statement, error) {
			return r.stores.Members.Upsert(ctx, e.CID, []chat.Member{e.Member}, false)
		})
	case MemberRemoved:
		return r.stores.Members.Delete(ctx, e.CID, e.UserID, false)
	case DraftUpdated:
		return r.guarded(ctx, e.Draft.ChannelCID, func() ([]query.Statement, error) {
			return r.stores.Drafts.Upsert(ctx, e.Draft, false)
		})
	case DraftDeleted:
		return r.stores.Drafts.Delete(ctx, e.CID, e.ParentID, false)
	case PollUpdated:
		return r.stores.Polls.Upsert(ctx, e.Poll, false)
	case UserUpdated:
		return r.stores.Users.Upsert(ctx, []chat.User{e.User}, false)
	case ConnectionChanged:
		return nil, nil
	}
	r.log.Warnf("Unhandled event type: %T", evt)
	return nil, nil
}

func (r *Router) messageNew(ctx context.Context, e MessageNew) ([]query.Statement, error) {
	msg := e.Message
	if msg.ParentID != "" && !msg.ShowInChannel {
		return nil, nil
	}

	existed, err := r.stores.Messages.Exists(ctx, msg.ID)
	if err != nil {
		return nil, err
	}
	stmts, err := r.stores.Messages.Upsert(ctx, []chat.Message{msg}, false)
	if err != nil {
		return nil, err
	}

	if !msg.CreatedAt.IsZero() {
		at := mapper.Time(msg.CreatedAt)
		stmt, err := query.Update(schema.Channels, schema.Row{"lastMessageAt": at},
			query.Predicate{"cid": e.CID, "lastMessageAt": query.Lt(at)})
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}

	if existed || r.userID == "" {
		return stmts, nil
	}
	var read chat.Read
	switch {
	case msg.UserID() == r.userID:
		read = chat.Read{User: &chat.User{ID: r.userID}, LastRead: msg.CreatedAt, LastReadMessageID: msg.ID}
	case msg.Silent:
		return stmts, nil
	default:
		current, err := r.stores.Reads.Get(ctx, e.CID, r.userID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			current = &chat.Read{User: &chat.User{ID: r.userID}}
		}
		read = *current
		read.UnreadMessages++
	}
	readStmts, err := r.stores.Reads.Upsert(ctx, e.CID, []chat.Read{read}, false)
	if err != nil {
		return nil, err
	}
	return append(stmts, readStmts...), nil
}

func (r *Router) messageRead(ctx context.Context, e MessageRead) ([]query.Statement, error) {
	return r.stores.Reads.Upsert(ctx, e.CID, []chat.Read{{
		User:              &chat.User{ID: e.UserID},
		LastRead:          e.At,
		LastReadMessageID: e.LastReadMessageID,
		UnreadMessages:    0,
	}}, false)
}

func (r *Router) markUnread(ctx context.Context, e MarkUnread) ([]query.Statement, error) {
	return r.stores.Reads.Upsert(ctx, e.CID, []chat.Read{{
		User:              &chat.User{ID: e.UserID},
		LastRead:          e.LastReadAt,
		LastReadMessageID: e.LastReadMessageID,
		UnreadMessages:    e.UnreadMessages,
	}}, false)
}

func (r *Router) channelVisibility(ctx context.Context, e ChannelVisibility) ([]query.Statement, error) {
	var stmts []query.Statement
	if e.Channel != nil && !e.Hidden {
		ch := *e.Channel
		if ch.CID == "" {
			ch.CID = e.CID
		}
		data, err := r.stores.Channels.UpsertData(ctx, []chat.Channel{ch}, false)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, data...)
	}
	hidden, err := r.stores.Channels.SetHidden(ctx, e.CID, e.Hidden, false)
	if err != nil {
		return nil, err
	}
	return append(stmts, hidden...), nil
}

// channelTruncated removes truncated messages and recounts the current
// user's unread messages among the survivors.
func (r *Router) channelTruncated(ctx context.Context, e ChannelTruncated) ([]query.Statement, error) {
	var unread int64
	var current *chat.Read
	if r.userID != "" {
		var err error
		current, err = r.stores.Reads.Get(ctx, e.CID, r.userID)
		if err != nil {
			return nil, err
		}
		if current != nil && !e.TruncatedAt.IsZero() {
			after := current.LastRead
			if e.TruncatedAt.After(after) {
				after = e.TruncatedAt
			}
			unread, err = r.stores.Messages.CountAfter(ctx, e.CID, after, r.userID)
			if err != nil {
				return nil, err
			}
		}
	}

	stmts, err := r.stores.Messages.DeleteForChannel(ctx, e.CID, e.TruncatedAt, false)
	if err != nil {
		return nil, err
	}

	if e.Channel != nil {
		ch := *e.Channel
		if ch.CID == "" {
			ch.CID = e.CID
		}
		data, err := r.stores.Channels.UpsertData(ctx, []chat.Channel{ch}, false)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, data...)
	}
	if e.Message != nil && e.Message.ID != "" {
		msg := *e.Message
		if msg.CID == "" {
			msg.CID = e.CID
		}
		msgStmts, err := r.stores.Messages.Upsert(ctx, []chat.Message{msg}, false)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, msgStmts...)
	}
	if current != nil {
		stmt, err := query.Update(schema.Reads, schema.Row{"unreadMessages": unread},
			query.Predicate{"cid": e.CID, "userId": r.userID})
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}
