package chat

import (
	"strings"
	"time"
)

// Envelope is the raw realtime event as delivered by the transport or the
// backend's missed-events endpoint.
type Envelope struct {
	Type        string `json:"type"`
	CID         string `json:"cid,omitempty"`
	ChannelID   string `json:"channel_id,omitempty"`
	ChannelType string `json:"channel_type,omitempty"`

	Channel         *Channel         `json:"channel,omitempty"`
	Message         *Message         `json:"message,omitempty"`
	Member          *Member          `json:"member,omitempty"`
	Reaction        *Reaction        `json:"reaction,omitempty"`
	User            *User            `json:"user,omitempty"`
	Poll            *Poll            `json:"poll,omitempty"`
	PollVote        *PollVote        `json:"poll_vote,omitempty"`
	Draft           *Draft           `json:"draft,omitempty"`
	QueriedChannels *QueriedChannels `json:"queriedChannels,omitempty"`

	HardDelete           bool      `json:"hard_delete,omitempty"`
	Online               *bool     `json:"online,omitempty"`
	LastReadMessageID    string    `json:"last_read_message_id,omitempty"`
	FirstUnreadMessageID string    `json:"first_unread_message_id,omitempty"`
	UnreadMessages       *int      `json:"unread_messages,omitempty"`
	LastReadAt           time.Time `json:"last_read_at,omitzero"`
	CreatedAt            time.Time `json:"created_at,omitzero"`
	ReceivedAt           time.Time `json:"received_at,omitzero"`
}

// ChannelCID resolves the channel the envelope addresses, looking at the
// explicit cid first, then the type/id pair, then nested payloads.
func (e Envelope) ChannelCID() string {
	switch {
	case e.CID != "":
		return e.CID
	case e.ChannelType != "" && e.ChannelID != "":
		return CID(e.ChannelType, e.ChannelID)
	case e.Channel != nil && e.Channel.CID != "":
		return e.Channel.CID
	case e.Message != nil && e.Message.CID != "":
		return e.Message.CID
	}
	return ""
}

// Timestamp is the time the event happened, falling back to its receipt time.
func (e Envelope) Timestamp() time.Time {
	if !e.CreatedAt.IsZero() {
		return e.CreatedAt
	}
	return e.ReceivedAt
}

// CID joins a channel type and id into a composite channel id.
func CID(channelType, channelID string) string {
	return channelType + ":" + channelID
}

// SplitCID splits a composite channel id into its type and id.
func SplitCID(cid string) (channelType, channelID string, ok bool) {
	channelType, channelID, ok = strings.Cut(cid, ":")
	if !ok || channelType == "" || channelID == "" {
		return "", "", false
	}
	return channelType, channelID, true
}
