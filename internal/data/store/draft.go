package store

import (
	"context"

	"chatcache/internal/chat"
	"chatcache/internal/data/mapper"
	"chatcache/internal/data/query"
	"chatcache/internal/data/schema"
)

// DraftStore handles draft replies.
type DraftStore struct {
	store *Store
}

// Upsert replaces the draft for (cid, parent) and its message.
func (s *DraftStore) Upsert(ctx context.Context, draft chat.Draft, flush bool) ([]query.Statement, error) {
	var b statements
	draftStatements(&b, draft)
	return s.store.apply(ctx, &b, flush)
}

// Delete removes the draft for (cid, parentID); its message goes by cascade.
func (s *DraftStore) Delete(ctx context.Context, cid, parentID string, flush bool) ([]query.Statement, error) {
	var b statements
	b.delete(schema.Draft, query.Predicate{"cid": cid, "parentId": parentID})
	return s.store.apply(ctx, &b, flush)
}

// Get returns the draft for (cid, parentID), or nil.
func (s *DraftStore) Get(ctx context.Context, cid, parentID string) (*chat.Draft, error) {
	drafts, err := loadDrafts(ctx, s.store, query.Predicate{"cid": cid, "parentId": parentID})
	if err != nil || len(drafts) == 0 {
		return nil, err
	}
	return &drafts[0], nil
}

func draftStatements(b *statements, draft chat.Draft) {
	if draft.ChannelCID == "" || draft.Message.ID == "" {
		return
	}
	draftRow, messageRow := mapper.DraftToStorable(draft)
	b.delete(schema.Draft, query.Predicate{"cid": draft.ChannelCID, "parentId": draft.ParentID})
	b.upsert(schema.Draft, draftRow)
	b.upsert(schema.DraftMessage, messageRow)
}

func loadDrafts(ctx context.Context, s *Store, p query.Predicate) ([]chat.Draft, error) {
	rows, err := s.rows(ctx, schema.Draft, p)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	var ids []string
	for _, row := range rows {
		ids = append(ids, mapper.String(row, "messageId"))
	}
	messageRows, err := s.rows(ctx, schema.DraftMessage, query.Predicate{"id": ids})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]schema.Row, len(messageRows))
	for _, row := range messageRows {
		byID[mapper.String(row, "id")] = row
	}

	drafts := make([]chat.Draft, 0, len(rows))
	for _, row := range rows {
		msg, ok := byID[mapper.String(row, "messageId")]
		if !ok {
			continue
		}
		drafts = append(drafts, mapper.StorableToDraft(row, msg))
	}
	return drafts, nil
}
