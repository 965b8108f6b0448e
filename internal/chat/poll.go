package chat

import "time"

// Poll is the backend poll payload. Vote collections are kept denormalized.
type Poll struct {
	ID                        string                `json:"id"`
	Name                      string                `json:"name"`
	Description               string                `json:"description,omitempty"`
	Options                   []PollOption          `json:"options,omitempty"`
	VotingVisibility          string                `json:"voting_visibility,omitempty"`
	EnforceUniqueVote         bool                  `json:"enforce_unique_vote,omitempty"`
	MaxVotesAllowed           int                   `json:"max_votes_allowed,omitempty"`
	AllowAnswers              bool                  `json:"allow_answers,omitempty"`
	AllowUserSuggestedOptions bool                  `json:"allow_user_suggested_options,omitempty"`
	IsClosed                  bool                  `json:"is_closed,omitempty"`
	VoteCount                 int                   `json:"vote_count,omitempty"`
	VoteCountsByOption        map[string]int        `json:"vote_counts_by_option,omitempty"`
	LatestVotesByOption       map[string][]PollVote `json:"latest_votes_by_option,omitempty"`
	LatestAnswers             []PollVote            `json:"latest_answers,omitempty"`
	OwnVotes                  []PollVote            `json:"own_votes,omitempty"`
	CreatedByID               string                `json:"created_by_id,omitempty"`
	CreatedAt                 time.Time             `json:"created_at,omitzero"`
	UpdatedAt                 time.Time             `json:"updated_at,omitzero"`

	ExtraData ExtraData `json:"-"`
}

func (p *Poll) UnmarshalJSON(data []byte) error {
	type alias Poll
	var a alias
	extra, _, err := unmarshalWithExtra(data, &a)
	if err != nil {
		return err
	}
	*p = Poll(a)
	p.ExtraData = extra
	return nil
}

func (p Poll) MarshalJSON() ([]byte, error) {
	type alias Poll
	return marshalWithExtra(alias(p), p.ExtraData)
}

// PollOption is one selectable answer.
type PollOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// PollVote is a vote or a free-form answer.
type PollVote struct {
	ID         string    `json:"id"`
	PollID     string    `json:"poll_id"`
	OptionID   string    `json:"option_id,omitempty"`
	IsAnswer   bool      `json:"is_answer,omitempty"`
	AnswerText string    `json:"answer_text,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitzero"`
	UpdatedAt  time.Time `json:"updated_at,omitzero"`
}

// Draft is an unsent reply scoped to a channel and an optional parent thread.
type Draft struct {
	ChannelCID string       `json:"channel_cid"`
	ParentID   string       `json:"parent_id,omitempty"`
	CreatedAt  time.Time    `json:"created_at,omitzero"`
	Message    DraftMessage `json:"message"`
}

// DraftMessage is the detail row owned by a Draft.
type DraftMessage struct {
	ID                string       `json:"id"`
	Text              string       `json:"text,omitempty"`
	Type              string       `json:"type,omitempty"`
	Attachments       []Attachment `json:"attachments,omitempty"`
	MentionedUsersIDs []string     `json:"mentioned_users,omitempty"`
	ParentID          string       `json:"parent_id,omitempty"`
	QuotedMessageID   string       `json:"quoted_message_id,omitempty"`
	PollID            string       `json:"poll_id,omitempty"`
	ShowInChannel     bool         `json:"show_in_channel,omitempty"`
	Silent            bool         `json:"silent,omitempty"`

	ExtraData ExtraData `json:"-"`
}

func (d *DraftMessage) UnmarshalJSON(data []byte) error {
	type alias DraftMessage
	var a alias
	extra, _, err := unmarshalWithExtra(data, &a)
	if err != nil {
		return err
	}
	*d = DraftMessage(a)
	d.ExtraData = extra
	return nil
}

func (d DraftMessage) MarshalJSON() ([]byte, error) {
	type alias DraftMessage
	return marshalWithExtra(alias(d), d.ExtraData)
}
