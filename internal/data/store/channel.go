package store

import (
	"context"

	"chatcache/internal/chat"
	"chatcache/internal/data/mapper"
	"chatcache/internal/data/query"
	"chatcache/internal/data/schema"
)

// ChannelStore handles channels and the composite channel state.
type ChannelStore struct {
	store *Store
}

// UpsertOptions controls a composite channel write.
type UpsertOptions struct {
	// IsLatestMessagesSet replaces the stored messages of each channel with
	// the delivered ones.
	IsLatestMessagesSet bool
	// Filter and Sort, when set, record the channel ids for that query.
	Filter chat.Filter
	Sort   chat.Sort
}

// UpsertData saves channel rows only.
func (s *ChannelStore) UpsertData(ctx context.Context, channels []chat.Channel, flush bool) ([]query.Statement, error) {
	var b statements
	channelDataStatements(&b, channels)
	return s.store.apply(ctx, &b, flush)
}

// Upsert saves channels together with their members, reads, messages and
// drafts.
func (s *ChannelStore) Upsert(ctx context.Context, states []chat.ChannelState, opts UpsertOptions, flush bool) ([]query.Statement, error) {
	var (
		b        statements
		channels []chat.Channel
		cids     []string
	)
	for _, st := range states {
		if st.Channel == nil {
			continue
		}
		ch := *st.Channel
		if ch.CID == "" && ch.Type != "" && ch.ID != "" {
			ch.CID = chat.CID(ch.Type, ch.ID)
		}
		if ch.CID == "" {
			continue
		}
		channels = append(channels, ch)
		cids = append(cids, ch.CID)
	}

	channelDataStatements(&b, channels)
	if opts.IsLatestMessagesSet && len(cids) > 0 {
		b.delete(schema.Messages, query.Predicate{"cid": cids})
	}
	for _, st := range states {
		if st.Channel == nil {
			continue
		}
		cid := st.Channel.CID
		if cid == "" {
			cid = chat.CID(st.Channel.Type, st.Channel.ID)
		}
		memberStatements(&b, cid, st.Members)
		readStatements(&b, cid, st.Read)

		msgs := make([]chat.Message, 0, len(st.Messages))
		for _, m := range st.Messages {
			if m.CID == "" {
				m.CID = cid
			}
			msgs = append(msgs, m)
		}
		messageStatements(&b, msgs)
		if st.Draft != nil {
			d := *st.Draft
			if d.ChannelCID == "" {
				d.ChannelCID = cid
			}
			draftStatements(&b, d)
		}
	}
	if key, ok := mapper.ChannelQueryKey(opts.Filter, opts.Sort); ok {
		b.upsert(schema.ChannelQueries, mapper.ChannelQueryToStorable(key, cids))
	}
	return s.store.apply(ctx, &b, flush)
}

// SetHidden flips a channel's hidden flag.
func (s *ChannelStore) SetHidden(ctx context.Context, cid string, hidden, flush bool) ([]query.Statement, error) {
	var b statements
	b.update(schema.Channels, schema.Row{"hidden": boolInt(hidden)}, query.Predicate{"cid": cid})
	return s.store.apply(ctx, &b, flush)
}

// Delete removes a channel and its messages. Members, reads, reactions and
// drafts go by cascade.
func (s *ChannelStore) Delete(ctx context.Context, cid string, flush bool) ([]query.Statement, error) {
	var b statements
	b.delete(schema.Messages, query.Predicate{"cid": cid})
	b.delete(schema.Channels, query.Predicate{"cid": cid})
	return s.store.apply(ctx, &b, flush)
}

// Exists reports whether the channel row is stored.
func (s *ChannelStore) Exists(ctx context.Context, cid string) (bool, error) {
	return s.store.exists(ctx, schema.Channels, query.Predicate{"cid": cid})
}

// CIDs returns every stored channel id.
func (s *ChannelStore) CIDs(ctx context.Context) ([]string, error) {
	stmt, err := query.Select(schema.Channels, []string{"cid"}, nil, query.OrderBy{Column: "cid"})
	if err != nil {
		return nil, err
	}
	rows, err := s.store.exec.ExecuteOne(ctx, stmt)
	if err != nil {
		return nil, err
	}
	cids := make([]string, 0, len(rows))
	for _, row := range rows {
		cids = append(cids, mapper.String(row, "cid"))
	}
	return cids, nil
}

// ForQuery returns the channels last stored for a filter/sort pair, in the
// stored order. An empty filter and sort, or an unknown query, yields nil.
func (s *ChannelStore) ForQuery(ctx context.Context, filter chat.Filter, sort chat.Sort, opts ReadOptions) ([]chat.ChannelState, error) {
	cids, err := (&QueryStore{store: s.store}).CIDs(ctx, filter, sort)
	if err != nil || len(cids) == 0 {
		return nil, err
	}
	return s.Get(ctx, cids, opts)
}

// Get returns full channel states for cids, in the order given. Channels
// that are not stored are skipped.
func (s *ChannelStore) Get(ctx context.Context, cids []string, opts ReadOptions) ([]chat.ChannelState, error) {
	cids = uniqueStrings(cids)
	if len(cids) == 0 {
		return nil, nil
	}
	rows, err := s.store.rows(ctx, schema.Channels, query.Predicate{"cid": cids})
	if err != nil {
		return nil, err
	}
	channels := make(map[string]chat.Channel, len(rows))
	var creators []string
	for _, row := range rows {
		ch := mapper.StorableToChannel(row)
		channels[ch.CID] = ch
		if ch.CreatedBy != nil {
			creators = append(creators, ch.CreatedBy.ID)
		}
	}

	users, err := loadUsers(ctx, s.store, creators)
	if err != nil {
		return nil, err
	}
	members, err := loadMembers(ctx, s.store, cids)
	if err != nil {
		return nil, err
	}
	reads, err := loadReads(ctx, s.store, cids)
	if err != nil {
		return nil, err
	}
	messages, err := loadMessages(ctx, s.store, cids, opts)
	if err != nil {
		return nil, err
	}
	drafts, err := loadDrafts(ctx, s.store, query.Predicate{"cid": cids, "parentId": ""})
	if err != nil {
		return nil, err
	}
	draftByCID := make(map[string]chat.Draft, len(drafts))
	for _, d := range drafts {
		draftByCID[d.ChannelCID] = d
	}

	states := make([]chat.ChannelState, 0, len(cids))
	for _, cid := range cids {
		ch, ok := channels[cid]
		if !ok {
			continue
		}
		if ch.CreatedBy != nil {
			ch.CreatedBy = userRef(users, ch.CreatedBy.ID)
		}
		st := chat.ChannelState{
			Channel:  &ch,
			Members:  members[cid],
			Messages: messages[cid],
			Read:     reads[cid],
		}
		if d, ok := draftByCID[cid]; ok {
			st.Draft = &d
		}
		states = append(states, st)
	}
	return states, nil
}

func channelDataStatements(b *statements, channels []chat.Channel) {
	var creators []chat.User
	for _, ch := range channels {
		if ch.CreatedBy != nil {
			creators = append(creators, *ch.CreatedBy)
		}
	}
	userStatements(b, creators)
	for _, ch := range channels {
		row := mapper.ChannelToStorable(ch)
		if row["cid"] == "" {
			continue
		}
		b.upsert(schema.Channels, row)
	}
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
