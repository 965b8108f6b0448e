package mapper

import (
	"chatcache/internal/chat"
	"chatcache/internal/data/schema"
)

var messageKeys = wireKeys{
	"type":                 "type",
	"text":                 "text",
	"userId":               "user",
	"attachments":          "attachments",
	"mentionedUsers":       "mentioned_users",
	"reactionGroups":       "reaction_groups",
	"parentId":             "parent_id",
	"quotedMessageId":      "quoted_message_id",
	"replyCount":           "reply_count",
	"showInChannel":        "show_in_channel",
	"silent":               "silent",
	"pinned":               "pinned",
	"pinnedAt":             "pinned_at",
	"createdAt":            "created_at",
	"updatedAt":            "updated_at",
	"deletedAt":            "deleted_at",
	"messageTextUpdatedAt": "message_text_updated_at",
}

// MessageToStorable maps a message. Columns the decoded payload did not carry
// are left out.
func MessageToStorable(m chat.Message) schema.Row {
	row := schema.Row{
		"id":                   m.ID,
		"cid":                  m.CID,
		"type":                 m.Type,
		"text":                 m.Text,
		"userId":               m.UserID(),
		"attachments":          jsonText(m.Attachments),
		"mentionedUsers":       jsonText(m.MentionedUsers),
		"reactionGroups":       jsonText(m.ReactionGroups),
		"parentId":             m.ParentID,
		"quotedMessageId":      m.QuotedMessageID,
		"pollId":               nullable(pollID(m)),
		"replyCount":           m.ReplyCount,
		"showInChannel":        boolToInt(m.ShowInChannel),
		"silent":               boolToInt(m.Silent),
		"pinned":               boolToInt(m.Pinned),
		"pinnedAt":             Time(m.PinnedAt),
		"createdAt":            Time(m.CreatedAt),
		"updatedAt":            Time(m.UpdatedAt),
		"deletedAt":            Time(m.DeletedAt),
		"messageTextUpdatedAt": Time(m.MessageTextUpdatedAt),
		"extraData":            extraText(m.ExtraData),
	}
	row = present(row, m.Fields, messageKeys)
	if !m.Fields.Has("poll_id") && !m.Fields.Has("poll") {
		delete(row, "pollId")
	}
	return row
}

func pollID(m chat.Message) string {
	if m.PollID == "" && m.Poll != nil {
		return m.Poll.ID
	}
	return m.PollID
}

// nullable stores "" as NULL for optional references.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// StorableToMessage maps a messages row. User carries only the id; the read
// layer attaches users, reactions and polls.
func StorableToMessage(row schema.Row) chat.Message {
	m := chat.Message{
		ID:                   String(row, "id"),
		CID:                  String(row, "cid"),
		Type:                 String(row, "type"),
		Text:                 String(row, "text"),
		ParentID:             String(row, "parentId"),
		QuotedMessageID:      String(row, "quotedMessageId"),
		PollID:               String(row, "pollId"),
		ReplyCount:           int(Int(row, "replyCount")),
		ShowInChannel:        Bool(row, "showInChannel"),
		Silent:               Bool(row, "silent"),
		Pinned:               Bool(row, "pinned"),
		PinnedAt:             timeCol(row, "pinnedAt"),
		CreatedAt:            timeCol(row, "createdAt"),
		UpdatedAt:            timeCol(row, "updatedAt"),
		DeletedAt:            timeCol(row, "deletedAt"),
		MessageTextUpdatedAt: timeCol(row, "messageTextUpdatedAt"),
		ExtraData:            extraFrom(row),
	}
	fromJSON(String(row, "attachments"), &m.Attachments)
	fromJSON(String(row, "mentionedUsers"), &m.MentionedUsers)
	fromJSON(String(row, "reactionGroups"), &m.ReactionGroups)
	if id := String(row, "userId"); id != "" {
		m.User = &chat.User{ID: id}
	}
	return m
}

func ReactionToStorable(r chat.Reaction) schema.Row {
	return schema.Row{
		"messageId": r.MessageID,
		"userId":    r.ReactionUserID(),
		"type":      r.Type,
		"score":     r.Score,
		"createdAt": Time(r.CreatedAt),
		"updatedAt": Time(r.UpdatedAt),
		"extraData": extraText(r.ExtraData),
	}
}

func StorableToReaction(row schema.Row) chat.Reaction {
	userID := String(row, "userId")
	return chat.Reaction{
		MessageID: String(row, "messageId"),
		UserID:    userID,
		User:      &chat.User{ID: userID},
		Type:      String(row, "type"),
		Score:     int(Int(row, "score")),
		CreatedAt: timeCol(row, "createdAt"),
		UpdatedAt: timeCol(row, "updatedAt"),
		ExtraData: extraFrom(row),
	}
}
