package store

import (
	"context"

	"chatcache/internal/chat"
	"chatcache/internal/data/mapper"
	"chatcache/internal/data/query"
	"chatcache/internal/data/schema"
)

// ReactionStore handles message reactions.
type ReactionStore struct {
	store *Store
}

// Replace swaps every stored reaction of msg for the reactions in the
// message's own snapshot (latest and own reactions). A decoded message that
// carries neither list leaves the stored reactions alone.
func (s *ReactionStore) Replace(ctx context.Context, msg chat.Message, flush bool) ([]query.Statement, error) {
	var b statements
	reactionSnapshotStatements(&b, msg)
	return s.store.apply(ctx, &b, flush)
}

// ForMessages returns stored reactions per message id, newest first.
func (s *ReactionStore) ForMessages(ctx context.Context, messageIDs []string) (map[string][]chat.Reaction, error) {
	return loadReactions(ctx, s.store, messageIDs)
}

func reactionSnapshotStatements(b *statements, msg chat.Message) {
	if !msg.Fields.Has("latest_reactions") && !msg.Fields.Has("own_reactions") {
		return
	}
	b.delete(schema.Reactions, query.Predicate{"messageId": msg.ID})

	type key struct{ user, kind string }
	seen := map[key]bool{}
	for _, r := range append(append([]chat.Reaction(nil), msg.LatestReactions...), msg.OwnReactions...) {
		r.MessageID = msg.ID
		k := key{r.ReactionUserID(), r.Type}
		if k.user == "" || k.kind == "" || seen[k] {
			continue
		}
		seen[k] = true
		b.upsert(schema.Reactions, mapper.ReactionToStorable(r))
	}
}

func loadReactions(ctx context.Context, s *Store, messageIDs []string) (map[string][]chat.Reaction, error) {
	out := map[string][]chat.Reaction{}
	messageIDs = uniqueStrings(messageIDs)
	if len(messageIDs) == 0 {
		return out, nil
	}
	rows, err := s.rows(ctx, schema.Reactions, query.Predicate{"messageId": messageIDs},
		query.OrderBy{Column: "createdAt", Desc: true})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		r := mapper.StorableToReaction(row)
		out[r.MessageID] = append(out[r.MessageID], r)
	}
	return out, nil
}
