package store

import (
	"context"

	"chatcache/internal/chat"
	"chatcache/internal/data/mapper"
	"chatcache/internal/data/query"
	"chatcache/internal/data/schema"
)

// UserStore handles the shared user projection.
type UserStore struct {
	store *Store
}

// Upsert saves users. Empty text columns are left out, so a partial nested
// user snapshot never blanks stored fields.
func (s *UserStore) Upsert(ctx context.Context, users []chat.User, flush bool) ([]query.Statement, error) {
	var b statements
	userStatements(&b, users)
	return s.store.apply(ctx, &b, flush)
}

// Get returns users by id.
func (s *UserStore) Get(ctx context.Context, ids []string) (map[string]chat.User, error) {
	return loadUsers(ctx, s.store, ids)
}

func userStatements(b *statements, users []chat.User) {
	seen := map[string]int{}
	var unique []chat.User
	for _, u := range users {
		if u.ID == "" {
			continue
		}
		if i, ok := seen[u.ID]; ok {
			unique[i] = u
			continue
		}
		seen[u.ID] = len(unique)
		unique = append(unique, u)
	}
	for _, u := range unique {
		row := mapper.UserToStorable(u)
		for k, v := range row {
			if s, ok := v.(string); ok && s == "" {
				delete(row, k)
			}
		}
		b.upsert(schema.Users, row)
	}
}

func loadUsers(ctx context.Context, s *Store, ids []string) (map[string]chat.User, error) {
	ids = uniqueStrings(ids)
	users := make(map[string]chat.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	rows, err := s.rows(ctx, schema.Users, query.Predicate{"id": ids})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		u := mapper.StorableToUser(row)
		users[u.ID] = u
	}
	return users, nil
}

// userRef resolves a stored user, keeping the bare reference when the user
// itself is not stored.
func userRef(users map[string]chat.User, id string) *chat.User {
	if id == "" {
		return nil
	}
	if u, ok := users[id]; ok {
		return &u
	}
	return &chat.User{ID: id}
}
