package chat

import "time"

// User is the shared identity/presence projection of a backend user.
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name,omitempty"`
	Image         string    `json:"image,omitempty"`
	Role          string    `json:"role,omitempty"`
	Online        bool      `json:"online,omitempty"`
	Banned        bool      `json:"banned,omitempty"`
	LastActive    time.Time `json:"last_active,omitzero"`
	CreatedAt     time.Time `json:"created_at,omitzero"`
	UpdatedAt     time.Time `json:"updated_at,omitzero"`
	DeactivatedAt time.Time `json:"deactivated_at,omitzero"`

	ExtraData ExtraData `json:"-"`
}

func (u *User) UnmarshalJSON(data []byte) error {
	type alias User
	var a alias
	extra, _, err := unmarshalWithExtra(data, &a)
	if err != nil {
		return err
	}
	*u = User(a)
	u.ExtraData = extra
	return nil
}

func (u User) MarshalJSON() ([]byte, error) {
	type alias User
	return marshalWithExtra(alias(u), u.ExtraData)
}

// Channel is the backend channel payload.
type Channel struct {
	CID                     string    `json:"cid"`
	ID                      string    `json:"id"`
	Type                    string    `json:"type"`
	CreatedBy               *User     `json:"created_by,omitempty"`
	Team                    string    `json:"team,omitempty"`
	MemberCount             int       `json:"member_count,omitempty"`
	Cooldown                int       `json:"cooldown,omitempty"`
	Frozen                  bool      `json:"frozen,omitempty"`
	Disabled                bool      `json:"disabled,omitempty"`
	Hidden                  bool      `json:"hidden,omitempty"`
	Muted                   bool      `json:"muted,omitempty"`
	AutoTranslationEnabled  bool      `json:"auto_translation_enabled,omitempty"`
	AutoTranslationLanguage string    `json:"auto_translation_language,omitempty"`
	OwnCapabilities         []string  `json:"own_capabilities,omitempty"`
	LastMessageAt           time.Time `json:"last_message_at,omitzero"`
	CreatedAt               time.Time `json:"created_at,omitzero"`
	UpdatedAt               time.Time `json:"updated_at,omitzero"`
	DeletedAt               time.Time `json:"deleted_at,omitzero"`
	TruncatedAt             time.Time `json:"truncated_at,omitzero"`

	ExtraData ExtraData `json:"-"`
	// Fields lists the keys of the decoded payload; nil when built in code.
	Fields Fields `json:"-"`
}

func (c *Channel) UnmarshalJSON(data []byte) error {
	type alias Channel
	var a alias
	extra, fields, err := unmarshalWithExtra(data, &a)
	if err != nil {
		return err
	}
	*c = Channel(a)
	c.ExtraData = extra
	c.Fields = fields
	return nil
}

func (c Channel) MarshalJSON() ([]byte, error) {
	type alias Channel
	return marshalWithExtra(alias(c), c.ExtraData)
}

// Member is a user's relationship to a channel.
type Member struct {
	UserID             string    `json:"user_id"`
	User               *User     `json:"user,omitempty"`
	Role               string    `json:"role,omitempty"`
	ChannelRole        string    `json:"channel_role,omitempty"`
	Banned             bool      `json:"banned,omitempty"`
	ShadowBanned       bool      `json:"shadow_banned,omitempty"`
	IsModerator        bool      `json:"is_moderator,omitempty"`
	Invited            bool      `json:"invited,omitempty"`
	NotificationsMuted bool      `json:"notifications_muted,omitempty"`
	InviteAcceptedAt   time.Time `json:"invite_accepted_at,omitzero"`
	InviteRejectedAt   time.Time `json:"invite_rejected_at,omitzero"`
	ArchivedAt         time.Time `json:"archived_at,omitzero"`
	PinnedAt           time.Time `json:"pinned_at,omitzero"`
	CreatedAt          time.Time `json:"created_at,omitzero"`
	UpdatedAt          time.Time `json:"updated_at,omitzero"`

	ExtraData ExtraData `json:"-"`
	Fields    Fields    `json:"-"`
}

func (m *Member) UnmarshalJSON(data []byte) error {
	type alias Member
	var a alias
	extra, fields, err := unmarshalWithExtra(data, &a)
	if err != nil {
		return err
	}
	*m = Member(a)
	m.ExtraData = extra
	m.Fields = fields
	return nil
}

func (m Member) MarshalJSON() ([]byte, error) {
	type alias Member
	return marshalWithExtra(alias(m), m.ExtraData)
}

// MemberUserID returns the member's user id, falling back to the nested user.
func (m Member) MemberUserID() string {
	if m.UserID != "" {
		return m.UserID
	}
	if m.User != nil {
		return m.User.ID
	}
	return ""
}

// Read is a user's last-read watermark in a channel.
type Read struct {
	User                 *User     `json:"user"`
	LastRead             time.Time `json:"last_read,omitzero"`
	LastReadMessageID    string    `json:"last_read_message_id,omitempty"`
	FirstUnreadMessageID string    `json:"first_unread_message_id,omitempty"`
	UnreadMessages       int       `json:"unread_messages"`
}

// ChannelState is a channel together with the collections the backend
// returns alongside it.
type ChannelState struct {
	Channel  *Channel  `json:"channel"`
	Members  []Member  `json:"members,omitempty"`
	Messages []Message `json:"messages,omitempty"`
	Read     []Read    `json:"read,omitempty"`
	Draft    *Draft    `json:"draft,omitempty"`
}

// QueriedChannels is a bulk channel query result.
type QueriedChannels struct {
	Channels            []ChannelState `json:"channels"`
	IsLatestMessagesSet bool           `json:"is_latest_messages_set,omitempty"`
}
