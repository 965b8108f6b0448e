package store

import (
	"context"
	"time"

	"chatcache/internal/chat"
	"chatcache/internal/data/mapper"
	"chatcache/internal/data/query"
	"chatcache/internal/data/schema"
)

// ReadOptions controls how stored entities are assembled on read.
type ReadOptions struct {
	// CurrentUserID selects own reactions.
	CurrentUserID string
	// MessageLimit caps recent messages per channel. Zero uses DefaultMessageLimit.
	MessageLimit int
}

func (o ReadOptions) messageLimit() int {
	if o.MessageLimit <= 0 {
		return DefaultMessageLimit
	}
	return o.MessageLimit
}

// MessageStore handles channel messages.
type MessageStore struct {
	store *Store
}

// Upsert saves messages with their users, polls and reaction snapshots.
func (s *MessageStore) Upsert(ctx context.Context, messages []chat.Message, flush bool) ([]query.Statement, error) {
	var b statements
	messageStatements(&b, messages)
	return s.store.apply(ctx, &b, flush)
}

// Update overwrites a stored message from a newer snapshot, leaving columns
// the snapshot does not carry as stored. A message that is not stored yields
// no statements.
func (s *MessageStore) Update(ctx context.Context, msg chat.Message, flush bool) ([]query.Statement, error) {
	if msg.ID == "" {
		return nil, nil
	}
	exists, err := s.Exists(ctx, msg.ID)
	if err != nil || !exists {
		return nil, err
	}

	var b statements
	userStatements(&b, messageUsers(msg))
	if msg.Poll != nil {
		pollStatements(&b, *msg.Poll)
	}
	set := mapper.MessageToStorable(msg)
	delete(set, "id")
	if msg.CID == "" {
		delete(set, "cid")
	}
	if len(set) > 0 {
		b.update(schema.Messages, set, query.Predicate{"id": msg.ID})
	}
	reactionSnapshotStatements(&b, msg)
	return s.store.apply(ctx, &b, flush)
}

// Delete tombstones a message: its type becomes "deleted" and deletedAt is
// set, keeping the row visible to readers. hard removes the row and, by
// cascade, its reactions.
func (s *MessageStore) Delete(ctx context.Context, messageID string, deletedAt time.Time, hard, flush bool) ([]query.Statement, error) {
	var b statements
	if hard {
		b.delete(schema.Messages, query.Predicate{"id": messageID})
	} else {
		if deletedAt.IsZero() {
			deletedAt = time.Now()
		}
		b.update(schema.Messages, schema.Row{
			"type":      chat.MessageTypeDeleted,
			"deletedAt": mapper.Time(deletedAt),
		}, query.Predicate{"id": messageID})
	}
	return s.store.apply(ctx, &b, flush)
}

// DeleteForChannel removes a channel's messages. A non-zero truncatedAt only
// removes messages created at or before it.
func (s *MessageStore) DeleteForChannel(ctx context.Context, cid string, truncatedAt time.Time, flush bool) ([]query.Statement, error) {
	var b statements
	p := query.Predicate{"cid": cid}
	if !truncatedAt.IsZero() {
		p["createdAt"] = query.Lte(mapper.Time(truncatedAt))
	}
	b.delete(schema.Messages, p)
	return s.store.apply(ctx, &b, flush)
}

// Exists reports whether the message is stored.
func (s *MessageStore) Exists(ctx context.Context, messageID string) (bool, error) {
	return s.store.exists(ctx, schema.Messages, query.Predicate{"id": messageID})
}

// Get returns the stored message row without joined entities, or nil.
func (s *MessageStore) Get(ctx context.Context, messageID string) (*chat.Message, error) {
	rows, err := s.store.rows(ctx, schema.Messages, query.Predicate{"id": messageID})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	m := mapper.StorableToMessage(rows[0])
	return &m, nil
}

// CountAfter counts a channel's messages created after t, excluding those
// authored by userID.
func (s *MessageStore) CountAfter(ctx context.Context, cid string, t time.Time, userID string) (int64, error) {
	p := query.Predicate{"cid": cid}
	if !t.IsZero() {
		p["createdAt"] = query.Gt(mapper.Time(t))
	}
	if userID != "" {
		p["userId"] = query.Ne(userID)
	}
	return s.store.count(ctx, schema.Messages, p)
}

// ForChannels returns the most recent messages of each channel in
// chronological order, with users, reactions and polls attached.
func (s *MessageStore) ForChannels(ctx context.Context, cids []string, opts ReadOptions) (map[string][]chat.Message, error) {
	return loadMessages(ctx, s.store, cids, opts)
}

func loadMessages(ctx context.Context, s *Store, cids []string, opts ReadOptions) (map[string][]chat.Message, error) {
	out := map[string][]chat.Message{}
	cids = uniqueStrings(cids)
	if len(cids) == 0 {
		return out, nil
	}
	rows, err := s.rows(ctx, schema.Messages, query.Predicate{"cid": cids},
		query.OrderBy{Column: "createdAt", Desc: true})
	if err != nil {
		return nil, err
	}

	limit := opts.messageLimit()
	var ids, userIDs, pollIDs []string
	for _, row := range rows {
		m := mapper.StorableToMessage(row)
		if len(out[m.CID]) >= limit {
			continue
		}
		out[m.CID] = append(out[m.CID], m)
		ids = append(ids, m.ID)
		userIDs = append(userIDs, m.UserID())
		if m.PollID != "" {
			pollIDs = append(pollIDs, m.PollID)
		}
	}

	reactions, err := loadReactions(ctx, s, ids)
	if err != nil {
		return nil, err
	}
	for _, list := range reactions {
		for _, r := range list {
			userIDs = append(userIDs, r.UserID)
		}
	}
	users, err := loadUsers(ctx, s, userIDs)
	if err != nil {
		return nil, err
	}
	polls, err := loadPolls(ctx, s, pollIDs)
	if err != nil {
		return nil, err
	}

	for cid, msgs := range out {
		for i := range msgs {
			m := &msgs[i]
			m.User = userRef(users, m.UserID())
			if p, ok := polls[m.PollID]; ok {
				m.Poll = &p
			}
			for _, r := range reactions[m.ID] {
				r.User = userRef(users, r.UserID)
				m.LatestReactions = append(m.LatestReactions, r)
				if opts.CurrentUserID != "" && r.UserID == opts.CurrentUserID {
					m.OwnReactions = append(m.OwnReactions, r)
				}
			}
		}
		oldestFirst(msgs)
		out[cid] = msgs
	}
	return out, nil
}

// messageUsers returns every user referenced by a message snapshot.
func messageUsers(m chat.Message) []chat.User {
	var users []chat.User
	if m.User != nil {
		users = append(users, *m.User)
	}
	users = append(users, m.MentionedUsers...)
	for _, r := range append(append([]chat.Reaction(nil), m.LatestReactions...), m.OwnReactions...) {
		if r.User != nil {
			users = append(users, *r.User)
		}
	}
	return users
}

func messageStatements(b *statements, messages []chat.Message) {
	var users []chat.User
	for _, m := range messages {
		users = append(users, messageUsers(m)...)
	}
	userStatements(b, users)

	for _, m := range messages {
		if m.ID == "" || m.CID == "" {
			continue
		}
		if m.Poll != nil {
			pollStatements(b, *m.Poll)
		}
		b.upsert(schema.Messages, mapper.MessageToStorable(m))
		reactionSnapshotStatements(b, m)
	}
}
