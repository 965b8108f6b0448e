package event

import (
	"time"

	"chatcache/internal/chat"
)

// Event type tags.
const (
	TypeMessageNew             = "message.new"
	TypeMessageUpdated         = "message.updated"
	TypeMessageDeleted         = "message.deleted"
	TypeMessageRead            = "message.read"
	TypeMarkUnread             = "notification.mark_unread"
	TypeReactionNew            = "reaction.new"
	TypeReactionUpdated        = "reaction.updated"
	TypeReactionDeleted        = "reaction.deleted"
	TypeChannelUpdated         = "channel.updated"
	TypeChannelHidden          = "channel.hidden"
	TypeChannelVisible         = "channel.visible"
	TypeChannelTruncated       = "channel.truncated"
	TypeChannelDeleted         = "channel.deleted"
	TypeChannelsQueried        = "channels.queried"
	TypeMemberAdded            = "member.added"
	TypeMemberUpdated          = "member.updated"
	TypeMemberRemoved          = "member.removed"
	TypeAddedToChannel         = "notification.added_to_channel"
	TypeRemovedFromChannel     = "notification.removed_from_channel"
	TypeNotificationMessageNew = "notification.message_new"
	TypeDraftUpdated           = "draft.updated"
	TypeDraftDeleted           = "draft.deleted"
	TypePollUpdated            = "poll.updated"
	TypePollClosed             = "poll.closed"
	TypePollVoteCasted         = "poll.vote_casted"
	TypePollVoteChanged        = "poll.vote_changed"
	TypePollVoteRemoved        = "poll.vote_removed"
	TypeUserUpdated            = "user.updated"
	TypeConnectionChanged      = "connection.changed"
	TypeHealthCheck            = "health.check"
)

// Event is one decoded realtime event. The set of implementations is closed.
type Event interface {
	event()
}

type (
	// MessageNew is a new channel message.
	MessageNew struct {
		CID     string
		Message chat.Message
	}
	// MessageUpdated carries a newer snapshot of a stored message.
	MessageUpdated struct {
		Message chat.Message
	}
	// MessageDeleted tombstones or, when Hard, removes a message.
	MessageDeleted struct {
		MessageID string
		DeletedAt time.Time
		Hard      bool
	}
	// MessageRead moves a user's read watermark.
	MessageRead struct {
		CID               string
		UserID            string
		LastReadMessageID string
		At                time.Time
	}
	// MarkUnread sets a user's unread state explicitly.
	MarkUnread struct {
		CID               string
		UserID            string
		LastReadMessageID string
		LastReadAt        time.Time
		UnreadMessages    int
	}
	// ReactionChanged carries the message snapshot after a reaction change.
	ReactionChanged struct {
		Message chat.Message
	}
	// ChannelUpserted carries a channel snapshot.
	ChannelUpserted struct {
		Channel chat.Channel
	}
	// ChannelVisibility hides or shows a channel.
	ChannelVisibility struct {
		CID     string
		Hidden  bool
		Channel *chat.Channel
	}
	// ChannelTruncated removes messages up to TruncatedAt, or all of them.
	ChannelTruncated struct {
		CID         string
		TruncatedAt time.Time
		Channel     *chat.Channel
		Message     *chat.Message
	}
	// ChannelRemoved drops a channel from the local cache.
	ChannelRemoved struct {
		CID string
	}
	// ChannelsQueried is a bulk channel query result.
	ChannelsQueried struct {
		Result chat.QueriedChannels
	}
	// MemberUpserted adds or updates a membership.
	MemberUpserted struct {
		CID    string
		Member chat.Member
	}
	// MemberRemoved drops a membership.
	MemberRemoved struct {
		CID    string
		UserID string
	}
	// DraftUpdated replaces a draft.
	DraftUpdated struct {
		Draft chat.Draft
	}
	// DraftDeleted removes a draft.
	DraftDeleted struct {
		CID      string
		ParentID string
	}
	// PollUpdated carries a poll snapshot.
	PollUpdated struct {
		Poll chat.Poll
	}
	// UserUpdated carries a user snapshot.
	UserUpdated struct {
		User chat.User
	}
	// ConnectionChanged is a connectivity signal; it never writes.
	ConnectionChanged struct {
		Online bool
	}
)

func (MessageNew) event()        {}
func (MessageUpdated) event()    {}
func (MessageDeleted) event()    {}
func (MessageRead) event()       {}
func (MarkUnread) event()        {}
func (ReactionChanged) event()   {}
func (ChannelUpserted) event()   {}
func (ChannelVisibility) event() {}
func (ChannelTruncated) event()  {}
func (ChannelRemoved) event()    {}
func (ChannelsQueried) event()   {}
func (MemberUpserted) event()    {}
func (MemberRemoved) event()     {}
func (DraftUpdated) event()      {}
func (DraftDeleted) event()      {}
func (PollUpdated) event()       {}
func (UserUpdated) event()       {}
func (ConnectionChanged) event() {}

// Decode turns an envelope into an Event. It reports false for unknown types
// and for envelopes missing the fields their type requires.
func Decode(env chat.Envelope) (Event, bool) {
	cid := env.ChannelCID()
	at := env.Timestamp()

	switch env.Type {
	case TypeMessageNew:
		if env.Message == nil || env.Message.ID == "" || cid == "" {
			return nil, false
		}
		msg := *env.Message
		if msg.CID == "" {
			msg.CID = cid
		}
		return MessageNew{CID: cid, Message: msg}, true

	case TypeMessageUpdated:
		if env.Message == nil || env.Message.ID == "" {
			return nil, false
		}
		return MessageUpdated{Message: *env.Message}, true

	case TypeMessageDeleted:
		if env.Message == nil || env.Message.ID == "" {
			return nil, false
		}
		deletedAt := env.Message.DeletedAt
		if deletedAt.IsZero() {
			deletedAt = at
		}
		return MessageDeleted{MessageID: env.Message.ID, DeletedAt: deletedAt, Hard: env.HardDelete}, true

	case TypeMessageRead:
		if env.User == nil || env.User.ID == "" || cid == "" {
			return nil, false
		}
		return MessageRead{CID: cid, UserID: env.User.ID, LastReadMessageID: env.LastReadMessageID, At: at}, true

	case TypeMarkUnread:
		if env.User == nil || env.User.ID == "" || cid == "" || env.UnreadMessages == nil {
			return nil, false
		}
		return MarkUnread{
			CID:               cid,
			UserID:            env.User.ID,
			LastReadMessageID: env.LastReadMessageID,
			LastReadAt:        env.LastReadAt,
			UnreadMessages:    *env.UnreadMessages,
		}, true

	case TypeReactionNew, TypeReactionUpdated, TypeReactionDeleted:
		if env.Message == nil || env.Message.ID == "" {
			return nil, false
		}
		return ReactionChanged{Message: *env.Message}, true

	case TypeChannelUpdated, TypeAddedToChannel, TypeNotificationMessageNew:
		if env.Channel == nil || cid == "" {
			return nil, false
		}
		ch := *env.Channel
		if ch.CID == "" {
			ch.CID = cid
		}
		return ChannelUpserted{Channel: ch}, true

	case TypeChannelHidden, TypeChannelVisible:
		if cid == "" {
			return nil, false
		}
		return ChannelVisibility{CID: cid, Hidden: env.Type == TypeChannelHidden, Channel: env.Channel}, true

	case TypeChannelTruncated:
		if cid == "" {
			return nil, false
		}
		evt := ChannelTruncated{CID: cid, Channel: env.Channel, Message: env.Message}
		if env.Channel != nil {
			evt.TruncatedAt = env.Channel.TruncatedAt
		}
		return evt, true

	case TypeChannelDeleted, TypeRemovedFromChannel:
		if cid == "" {
			return nil, false
		}
		return ChannelRemoved{CID: cid}, true

	case TypeChannelsQueried:
		if env.QueriedChannels == nil {
			return nil, false
		}
		return ChannelsQueried{Result: *env.QueriedChannels}, true

	case TypeMemberAdded, TypeMemberUpdated:
		if env.Member == nil || env.Member.MemberUserID() == "" || cid == "" {
			return nil, false
		}
		return MemberUpserted{CID: cid, Member: *env.Member}, true

	case TypeMemberRemoved:
		if cid == "" {
			return nil, false
		}
		userID := ""
		switch {
		case env.Member != nil:
			userID = env.Member.MemberUserID()
		case env.User != nil:
			userID = env.User.ID
		}
		if userID == "" {
			return nil, false
		}
		return MemberRemoved{CID: cid, UserID: userID}, true

	case TypeDraftUpdated:
		if env.Draft == nil || env.Draft.Message.ID == "" {
			return nil, false
		}
		d := *env.Draft
		if d.ChannelCID == "" {
			d.ChannelCID = cid
		}
		if d.ChannelCID == "" {
			return nil, false
		}
		return DraftUpdated{Draft: d}, true

	case TypeDraftDeleted:
		if env.Draft == nil {
			return nil, false
		}
		draftCID := env.Draft.ChannelCID
		if draftCID == "" {
			draftCID = cid
		}
		if draftCID == "" {
			return nil, false
		}
		return DraftDeleted{CID: draftCID, ParentID: env.Draft.ParentID}, true

	case TypePollUpdated, TypePollClosed, TypePollVoteCasted, TypePollVoteChanged, TypePollVoteRemoved:
		if env.Poll == nil || env.Poll.ID == "" {
			return nil, false
		}
		return PollUpdated{Poll: *env.Poll}, true

	case TypeUserUpdated:
		if env.User == nil || env.User.ID == "" {
			return nil, false
		}
		return UserUpdated{User: *env.User}, true

	case TypeConnectionChanged:
		if env.Online == nil {
			return nil, false
		}
		return ConnectionChanged{Online: *env.Online}, true
	}
	return nil, false
}
