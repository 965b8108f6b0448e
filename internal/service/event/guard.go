package event

import (
	"context"

	"chatcache/internal/chat"
	"chatcache/internal/data/query"
	"chatcache/internal/data/store"
)

// guarded runs apply only once the channel row for cid is known to exist,
// backfilling it from the backend first when it is missing. When the channel
// cannot be backfilled the event is dropped and the next full resync
// restores it.
func (r *Router) guarded(ctx context.Context, cid string, apply func() ([]query.Statement, error)) ([]query.Statement, error) {
	backfill, ok, err := r.ensureChannel(ctx, cid)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	stmts, err := apply()
	if err != nil {
		return nil, err
	}
	return append(backfill, stmts...), nil
}

func (r *Router) ensureChannel(ctx context.Context, cid string) ([]query.Statement, bool, error) {
	exists, err := r.stores.Channels.Exists(ctx, cid)
	if err != nil {
		return nil, false, err
	}
	if exists {
		return nil, true, nil
	}

	channelType, channelID, addressable := chat.SplitCID(cid)
	if !addressable || r.fetcher == nil {
		r.log.Warnf("Dropping event for unknown channel %q: channel cannot be fetched", cid)
		return nil, false, nil
	}
	st, err := r.fetcher.Channel(ctx, channelType, channelID)
	if err != nil || st == nil || st.Channel == nil {
		r.log.Warnf("Dropping event for unknown channel %s: fetch failed: %v", cid, err)
		return nil, false, nil
	}
	if st.Channel.CID == "" {
		st.Channel.CID = cid
	}

	r.log.Debugf("Backfilling channel %s", cid)
	stmts, err := r.stores.Channels.Upsert(ctx, []chat.ChannelState{*st}, store.UpsertOptions{}, false)
	if err != nil {
		return nil, false, err
	}
	return stmts, true, nil
}
