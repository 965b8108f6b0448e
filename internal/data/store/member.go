package store

import (
	"context"

	"chatcache/internal/chat"
	"chatcache/internal/data/mapper"
	"chatcache/internal/data/query"
	"chatcache/internal/data/schema"
)

// MemberStore handles channel membership.
type MemberStore struct {
	store *Store
}

// Upsert saves members of cid together with their users.
func (s *MemberStore) Upsert(ctx context.Context, cid string, members []chat.Member, flush bool) ([]query.Statement, error) {
	var b statements
	memberStatements(&b, cid, members)
	return s.store.apply(ctx, &b, flush)
}

// Delete removes a user's membership.
func (s *MemberStore) Delete(ctx context.Context, cid, userID string, flush bool) ([]query.Statement, error) {
	var b statements
	b.delete(schema.Members, query.Predicate{"cid": cid, "userId": userID})
	return s.store.apply(ctx, &b, flush)
}

// ForChannels returns members per cid with users attached.
func (s *MemberStore) ForChannels(ctx context.Context, cids []string) (map[string][]chat.Member, error) {
	return loadMembers(ctx, s.store, cids)
}

func memberStatements(b *statements, cid string, members []chat.Member) {
	var users []chat.User
	for _, m := range members {
		if m.User != nil {
			users = append(users, *m.User)
		}
	}
	userStatements(b, users)
	for _, m := range members {
		if m.MemberUserID() == "" {
			continue
		}
		b.upsert(schema.Members, mapper.MemberToStorable(cid, m))
	}
}

func loadMembers(ctx context.Context, s *Store, cids []string) (map[string][]chat.Member, error) {
	out := map[string][]chat.Member{}
	cids = uniqueStrings(cids)
	if len(cids) == 0 {
		return out, nil
	}
	rows, err := s.rows(ctx, schema.Members, query.Predicate{"cid": cids}, query.OrderBy{Column: "createdAt"})
	if err != nil {
		return nil, err
	}
	var userIDs []string
	for _, row := range rows {
		userIDs = append(userIDs, mapper.String(row, "userId"))
	}
	users, err := loadUsers(ctx, s, userIDs)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		m := mapper.StorableToMember(row)
		m.User = userRef(users, m.UserID)
		cid := mapper.String(row, "cid")
		out[cid] = append(out[cid], m)
	}
	return out, nil
}

// ReadStore handles per-user read watermarks.
type ReadStore struct {
	store *Store
}

// Upsert saves reads of cid together with their users.
func (s *ReadStore) Upsert(ctx context.Context, cid string, reads []chat.Read, flush bool) ([]query.Statement, error) {
	var b statements
	readStatements(&b, cid, reads)
	return s.store.apply(ctx, &b, flush)
}

// Get returns the read of userID in cid, or nil.
func (s *ReadStore) Get(ctx context.Context, cid, userID string) (*chat.Read, error) {
	rows, err := s.store.rows(ctx, schema.Reads, query.Predicate{"cid": cid, "userId": userID})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	r := mapper.StorableToRead(rows[0])
	return &r, nil
}

// ForChannels returns reads per cid with users attached.
func (s *ReadStore) ForChannels(ctx context.Context, cids []string) (map[string][]chat.Read, error) {
	return loadReads(ctx, s.store, cids)
}

func readStatements(b *statements, cid string, reads []chat.Read) {
	var users []chat.User
	for _, r := range reads {
		if r.User != nil {
			users = append(users, *r.User)
		}
	}
	userStatements(b, users)
	for _, r := range reads {
		if r.User == nil || r.User.ID == "" {
			continue
		}
		b.upsert(schema.Reads, mapper.ReadToStorable(cid, r))
	}
}

func loadReads(ctx context.Context, s *Store, cids []string) (map[string][]chat.Read, error) {
	out := map[string][]chat.Read{}
	cids = uniqueStrings(cids)
	if len(cids) == 0 {
		return out, nil
	}
	rows, err := s.rows(ctx, schema.Reads, query.Predicate{"cid": cids})
	if err != nil {
		return nil, err
	}
	var userIDs []string
	for _, row := range rows {
		userIDs = append(userIDs, mapper.String(row, "userId"))
	}
	users, err := loadUsers(ctx, s, userIDs)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		r := mapper.StorableToRead(row)
		r.User = userRef(users, r.User.ID)
		cid := mapper.String(row, "cid")
		out[cid] = append(out[cid], r)
	}
	return out, nil
}
