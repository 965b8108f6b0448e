package chat

import "time"

// Message types with storage semantics.
const (
	MessageTypeRegular = "regular"
	MessageTypeDeleted = "deleted"
)

// Message is the backend message payload.
type Message struct {
	ID                   string                   `json:"id"`
	CID                  string                   `json:"cid,omitempty"`
	Type                 string                   `json:"type,omitempty"`
	Text                 string                   `json:"text,omitempty"`
	User                 *User                    `json:"user,omitempty"`
	Attachments          []Attachment             `json:"attachments,omitempty"`
	MentionedUsers       []User                   `json:"mentioned_users,omitempty"`
	ParentID             string                   `json:"parent_id,omitempty"`
	QuotedMessageID      string                   `json:"quoted_message_id,omitempty"`
	PollID               string                   `json:"poll_id,omitempty"`
	Poll                 *Poll                    `json:"poll,omitempty"`
	ReactionGroups       map[string]ReactionGroup `json:"reaction_groups,omitempty"`
	LatestReactions      []Reaction               `json:"latest_reactions,omitempty"`
	OwnReactions         []Reaction               `json:"own_reactions,omitempty"`
	ReplyCount           int                      `json:"reply_count,omitempty"`
	ShowInChannel        bool                     `json:"show_in_channel,omitempty"`
	Silent               bool                     `json:"silent,omitempty"`
	Pinned               bool                     `json:"pinned,omitempty"`
	PinnedAt             time.Time                `json:"pinned_at,omitzero"`
	CreatedAt            time.Time                `json:"created_at,omitzero"`
	UpdatedAt            time.Time                `json:"updated_at,omitzero"`
	DeletedAt            time.Time                `json:"deleted_at,omitzero"`
	MessageTextUpdatedAt time.Time                `json:"message_text_updated_at,omitzero"`

	ExtraData ExtraData `json:"-"`
	// Fields lists the keys of the decoded payload; nil when built in code.
	Fields Fields `json:"-"`
}

func (m *Message) UnmarshalJSON(data []byte) error {
	type alias Message
	var a alias
	extra, fields, err := unmarshalWithExtra(data, &a)
	if err != nil {
		return err
	}
	*m = Message(a)
	m.ExtraData = extra
	m.Fields = fields
	return nil
}

func (m Message) MarshalJSON() ([]byte, error) {
	type alias Message
	return marshalWithExtra(alias(m), m.ExtraData)
}

// UserID returns the author's id.
func (m Message) UserID() string {
	if m.User == nil {
		return ""
	}
	return m.User.ID
}

// Attachment is stored as part of the message's attachments blob.
type Attachment struct {
	Type      string `json:"type,omitempty"`
	Title     string `json:"title,omitempty"`
	TitleLink string `json:"title_link,omitempty"`
	Text      string `json:"text,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	ThumbURL  string `json:"thumb_url,omitempty"`
	AssetURL  string `json:"asset_url,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	FileSize  int64  `json:"file_size,omitempty"`

	ExtraData ExtraData `json:"-"`
}

func (a *Attachment) UnmarshalJSON(data []byte) error {
	type alias Attachment
	var v alias
	extra, _, err := unmarshalWithExtra(data, &v)
	if err != nil {
		return err
	}
	*a = Attachment(v)
	a.ExtraData = extra
	return nil
}

func (a Attachment) MarshalJSON() ([]byte, error) {
	type alias Attachment
	return marshalWithExtra(alias(a), a.ExtraData)
}

// ReactionGroup is the backend's per-type reaction summary.
type ReactionGroup struct {
	Count           int       `json:"count"`
	SumScores       int       `json:"sum_scores"`
	FirstReactionAt time.Time `json:"first_reaction_at,omitzero"`
	LastReactionAt  time.Time `json:"last_reaction_at,omitzero"`
}

// Reaction is one user's reaction of one type on a message.
type Reaction struct {
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id,omitempty"`
	User      *User     `json:"user,omitempty"`
	Type      string    `json:"type"`
	Score     int       `json:"score,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`

	ExtraData ExtraData `json:"-"`
}

func (r *Reaction) UnmarshalJSON(data []byte) error {
	type alias Reaction
	var a alias
	extra, _, err := unmarshalWithExtra(data, &a)
	if err != nil {
		return err
	}
	*r = Reaction(a)
	r.ExtraData = extra
	return nil
}

func (r Reaction) MarshalJSON() ([]byte, error) {
	type alias Reaction
	return marshalWithExtra(alias(r), r.ExtraData)
}

// ReactionUserID returns the reacting user's id.
func (r Reaction) ReactionUserID() string {
	if r.UserID != "" {
		return r.UserID
	}
	if r.User != nil {
		return r.User.ID
	}
	return ""
}
