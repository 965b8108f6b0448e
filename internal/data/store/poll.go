package store

import (
	"context"

	"chatcache/internal/chat"
	"chatcache/internal/data/mapper"
	"chatcache/internal/data/query"
	"chatcache/internal/data/schema"
)

// PollStore handles polls.
type PollStore struct {
	store *Store
}

// Upsert saves a poll snapshot.
func (s *PollStore) Upsert(ctx context.Context, poll chat.Poll, flush bool) ([]query.Statement, error) {
	var b statements
	pollStatements(&b, poll)
	return s.store.apply(ctx, &b, flush)
}

// Get returns the stored poll, or nil.
func (s *PollStore) Get(ctx context.Context, id string) (*chat.Poll, error) {
	polls, err := loadPolls(ctx, s.store, []string{id})
	if err != nil {
		return nil, err
	}
	p, ok := polls[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func pollStatements(b *statements, poll chat.Poll) {
	if poll.ID == "" {
		return
	}
	b.upsert(schema.Polls, mapper.PollToStorable(poll))
}

func loadPolls(ctx context.Context, s *Store, ids []string) (map[string]chat.Poll, error) {
	out := map[string]chat.Poll{}
	ids = uniqueStrings(ids)
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.rows(ctx, schema.Polls, query.Predicate{"id": ids})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		p := mapper.StorableToPoll(row)
		out[p.ID] = p
	}
	return out, nil
}
