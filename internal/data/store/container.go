package store

// Container provides access to every entity store.
type Container struct {
	Store *Store

	Users      *UserStore
	Channels   *ChannelStore
	Members    *MemberStore
	Reads      *ReadStore
	Messages   *MessageStore
	Reactions  *ReactionStore
	Polls      *PollStore
	Drafts     *DraftStore
	Queries    *QueryStore
	SyncStatus *SyncStatusStore
	Tasks      *TaskStore
}

// NewContainer creates a Container with all entity stores initialized.
func NewContainer(s *Store) *Container {
	return &Container{
		Store:      s,
		Users:      &UserStore{store: s},
		Channels:   &ChannelStore{store: s},
		Members:    &MemberStore{store: s},
		Reads:      &ReadStore{store: s},
		Messages:   &MessageStore{store: s},
		Reactions:  &ReactionStore{store: s},
		Polls:      &PollStore{store: s},
		Drafts:     &DraftStore{store: s},
		Queries:    &QueryStore{store: s},
		SyncStatus: &SyncStatusStore{store: s},
		Tasks:      &TaskStore{store: s},
	}
}
