package store

import (
	"context"

	"chatcache/internal/chat"
	"chatcache/internal/data/mapper"
	"chatcache/internal/data/query"
	"chatcache/internal/data/schema"
)

// QueryStore caches the channel ids returned for a filter/sort pair.
type QueryStore struct {
	store *Store
}

// UpsertCIDs records cids as the result of the query. An empty filter and
// sort is a no-op.
func (s *QueryStore) UpsertCIDs(ctx context.Context, filter chat.Filter, sort chat.Sort, cids []string, flush bool) ([]query.Statement, error) {
	key, ok := mapper.ChannelQueryKey(filter, sort)
	if !ok {
		return nil, nil
	}
	var b statements
	b.upsert(schema.ChannelQueries, mapper.ChannelQueryToStorable(key, cids))
	return s.store.apply(ctx, &b, flush)
}

// CIDs returns the cached channel ids for the query, or nil.
func (s *QueryStore) CIDs(ctx context.Context, filter chat.Filter, sort chat.Sort) ([]string, error) {
	key, ok := mapper.ChannelQueryKey(filter, sort)
	if !ok {
		return nil, nil
	}
	rows, err := s.store.rows(ctx, schema.ChannelQueries, query.Predicate{"id": key})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return mapper.StorableToChannelQuery(rows[0]), nil
}

// SyncStatusStore handles per-user sync watermarks.
type SyncStatusStore struct {
	store *Store
}

// Upsert saves the watermark. AppSettings is kept when the status has none.
func (s *SyncStatusStore) Upsert(ctx context.Context, status chat.SyncStatus, flush bool) ([]query.Statement, error) {
	var b statements
	if status.UserID != "" {
		b.upsert(schema.UserSyncStatus, mapper.SyncStatusToStorable(status))
	}
	return s.store.apply(ctx, &b, flush)
}

// Get returns the stored status for userID, or nil.
func (s *SyncStatusStore) Get(ctx context.Context, userID string) (*chat.SyncStatus, error) {
	rows, err := s.store.rows(ctx, schema.UserSyncStatus, query.Predicate{"userId": userID})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	st := mapper.StorableToSyncStatus(rows[0])
	return &st, nil
}
