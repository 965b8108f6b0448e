package schema

// Table names.
const (
	ChannelQueries = "channelQueries"
	Users          = "users"
	Channels       = "channels"
	Polls          = "polls"
	Messages       = "messages"
	Reactions      = "reactions"
	Members        = "members"
	Reads          = "reads"
	DraftMessage   = "draftMessage"
	Draft          = "draft"
	UserSyncStatus = "userSyncStatus"
	PendingTasks   = "pendingTasks"
)

// Optional columns default to the empty sentinel so partial inserts never
// leave NULLs behind.
func text(name string) Column    { return Column{Name: name, Type: Text, Default: "''"} }
func integer(name string) Column { return Column{Name: name, Type: Integer, Default: "0"} }
func required(name string) Column {
	return Column{Name: name, Type: Text, NotNull: true}
}

func cascadeFrom(parent, col, refCol string) ForeignKey {
	return ForeignKey{Columns: []string{col}, RefTable: parent, RefColumns: []string{refCol}, OnDelete: Cascade}
}

var tables = []Table{
	{
		Name: ChannelQueries,
		Columns: []Column{
			required("id"),
			text("cids"),
		},
		PrimaryKey: []string{"id"},
	},
	{
		Name: Users,
		Columns: []Column{
			required("id"),
			text("name"),
			text("image"),
			text("role"),
			integer("online"),
			integer("banned"),
			text("lastActive"),
			text("createdAt"),
			text("updatedAt"),
			text("deactivatedAt"),
			text("extraData"),
		},
		PrimaryKey: []string{"id"},
	},
	{
		Name: Channels,
		Columns: []Column{
			required("cid"),
			text("id"),
			text("type"),
			text("createdById"),
			text("team"),
			integer("memberCount"),
			integer("cooldown"),
			integer("frozen"),
			integer("disabled"),
			integer("hidden"),
			integer("muted"),
			integer("autoTranslationEnabled"),
			text("autoTranslationLanguage"),
			text("ownCapabilities"),
			text("lastMessageAt"),
			text("createdAt"),
			text("updatedAt"),
			text("deletedAt"),
			text("truncatedAt"),
			text("extraData"),
		},
		PrimaryKey: []string{"cid"},
	},
	{
		Name: Polls,
		Columns: []Column{
			required("id"),
			text("name"),
			text("description"),
			text("options"),
			text("votingVisibility"),
			integer("enforceUniqueVote"),
			integer("maxVotesAllowed"),
			integer("allowAnswers"),
			integer("allowUserSuggestedOptions"),
			integer("isClosed"),
			integer("voteCount"),
			text("voteCountsByOption"),
			text("latestVotesByOption"),
			text("latestAnswers"),
			text("ownVotes"),
			text("createdById"),
			text("createdAt"),
			text("updatedAt"),
			text("extraData"),
		},
		PrimaryKey: []string{"id"},
	},
	{
		Name: Messages,
		Columns: []Column{
			required("id"),
			required("cid"),
			text("type"),
			text("text"),
			text("userId"),
			text("attachments"),
			text("mentionedUsers"),
			text("reactionGroups"),
			text("parentId"),
			text("quotedMessageId"),
			text("pollId"),
			integer("replyCount"),
			integer("showInChannel"),
			integer("silent"),
			integer("pinned"),
			text("pinnedAt"),
			text("createdAt"),
			text("updatedAt"),
			text("deletedAt"),
			text("messageTextUpdatedAt"),
			text("extraData"),
		},
		PrimaryKey: []string{"id"},
		ForeignKeys: []ForeignKey{
			{Columns: []string{"cid"}, RefTable: Channels, RefColumns: []string{"cid"}, OnDelete: NoAction},
		},
		Indexes: []Index{
			{Name: "index_messages_cid_createdAt", Columns: []string{"cid", "createdAt"}},
		},
	},
	{
		Name: Reactions,
		Columns: []Column{
			required("messageId"),
			required("userId"),
			required("type"),
			integer("score"),
			text("createdAt"),
			text("updatedAt"),
			text("extraData"),
		},
		PrimaryKey:  []string{"messageId", "userId", "type"},
		ForeignKeys: []ForeignKey{cascadeFrom(Messages, "messageId", "id")},
	},
	{
		Name: Members,
		Columns: []Column{
			required("cid"),
			required("userId"),
			text("role"),
			text("channelRole"),
			integer("banned"),
			integer("shadowBanned"),
			integer("isModerator"),
			integer("invited"),
			integer("notificationsMuted"),
			text("inviteAcceptedAt"),
			text("inviteRejectedAt"),
			text("archivedAt"),
			text("pinnedAt"),
			text("createdAt"),
			text("updatedAt"),
			text("extraData"),
		},
		PrimaryKey:  []string{"cid", "userId"},
		ForeignKeys: []ForeignKey{cascadeFrom(Channels, "cid", "cid")},
	},
	{
		Name: Reads,
		Columns: []Column{
			required("userId"),
			required("cid"),
			text("lastRead"),
			text("lastReadMessageId"),
			integer("unreadMessages"),
		},
		PrimaryKey:  []string{"userId", "cid"},
		ForeignKeys: []ForeignKey{cascadeFrom(Channels, "cid", "cid")},
	},
	{
		Name: Draft,
		Columns: []Column{
			required("cid"),
			required("parentId"),
			required("messageId"),
			text("createdAt"),
		},
		PrimaryKey:  []string{"cid", "parentId"},
		ForeignKeys: []ForeignKey{cascadeFrom(Channels, "cid", "cid")},
	},
	{
		Name: DraftMessage,
		Columns: []Column{
			required("id"),
			required("cid"),
			required("parentId"),
			text("text"),
			text("type"),
			text("attachments"),
			text("mentionedUsers"),
			text("quotedMessageId"),
			text("pollId"),
			integer("showInChannel"),
			integer("silent"),
			text("extraData"),
		},
		PrimaryKey: []string{"id"},
		ForeignKeys: []ForeignKey{
			{Columns: []string{"cid", "parentId"}, RefTable: Draft, RefColumns: []string{"cid", "parentId"}, OnDelete: Cascade},
		},
	},
	{
		Name: UserSyncStatus,
		Columns: []Column{
			required("userId"),
			text("lastSyncedAt"),
			text("appSettings"),
		},
		PrimaryKey: []string{"userId"},
	},
	{
		Name: PendingTasks,
		Columns: []Column{
			{Name: "id", Type: Integer, AutoIncrement: true},
			required("type"),
			text("channelType"),
			text("channelId"),
			text("messageId"),
			text("payload"),
			text("createdAt"),
		},
		PrimaryKey: []string{"id"},
		Indexes: []Index{
			{Name: "index_pendingTasks_messageId", Columns: []string{"messageId"}},
		},
		Durable: true,
	},
}
