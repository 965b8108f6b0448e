package mapper

import (
	"chatcache/internal/chat"
	"chatcache/internal/data/schema"
)

var channelKeys = wireKeys{
	"id":                      "id",
	"type":                    "type",
	"createdById":             "created_by",
	"team":                    "team",
	"memberCount":             "member_count",
	"cooldown":                "cooldown",
	"frozen":                  "frozen",
	"disabled":                "disabled",
	"hidden":                  "hidden",
	"muted":                   "muted",
	"autoTranslationEnabled":  "auto_translation_enabled",
	"autoTranslationLanguage": "auto_translation_language",
	"ownCapabilities":         "own_capabilities",
	"lastMessageAt":           "last_message_at",
	"createdAt":               "created_at",
	"updatedAt":               "updated_at",
	"deletedAt":               "deleted_at",
	"truncatedAt":             "truncated_at",
}

// ChannelToStorable maps a channel. Columns the decoded payload did not carry
// are left out; id and type fall back to the parts of the cid.
func ChannelToStorable(c chat.Channel) schema.Row {
	row := schema.Row{
		"cid":                     c.CID,
		"id":                      c.ID,
		"type":                    c.Type,
		"createdById":             "",
		"team":                    c.Team,
		"memberCount":             c.MemberCount,
		"cooldown":                c.Cooldown,
		"frozen":                  boolToInt(c.Frozen),
		"disabled":                boolToInt(c.Disabled),
		"hidden":                  boolToInt(c.Hidden),
		"muted":                   boolToInt(c.Muted),
		"autoTranslationEnabled":  boolToInt(c.AutoTranslationEnabled),
		"autoTranslationLanguage": c.AutoTranslationLanguage,
		"ownCapabilities":         jsonText(c.OwnCapabilities),
		"lastMessageAt":           Time(c.LastMessageAt),
		"createdAt":               Time(c.CreatedAt),
		"updatedAt":               Time(c.UpdatedAt),
		"deletedAt":               Time(c.DeletedAt),
		"truncatedAt":             Time(c.TruncatedAt),
		"extraData":               extraText(c.ExtraData),
	}
	if c.CreatedBy != nil {
		row["createdById"] = c.CreatedBy.ID
	}
	if c.CID == "" && c.Type != "" && c.ID != "" {
		row["cid"] = chat.CID(c.Type, c.ID)
	}
	row = present(row, c.Fields, channelKeys)
	if typ, id, ok := chat.SplitCID(c.CID); ok && c.Type == "" && c.ID == "" {
		row["type"], row["id"] = typ, id
	}
	return row
}

// StorableToChannel maps a channels row. CreatedBy carries only the id; the
// read layer attaches the stored user.
func StorableToChannel(row schema.Row) chat.Channel {
	c := chat.Channel{
		CID:                     String(row, "cid"),
		ID:                      String(row, "id"),
		Type:                    String(row, "type"),
		Team:                    String(row, "team"),
		MemberCount:             int(Int(row, "memberCount")),
		Cooldown:                int(Int(row, "cooldown")),
		Frozen:                  Bool(row, "frozen"),
		Disabled:                Bool(row, "disabled"),
		Hidden:                  Bool(row, "hidden"),
		Muted:                   Bool(row, "muted"),
		AutoTranslationEnabled:  Bool(row, "autoTranslationEnabled"),
		AutoTranslationLanguage: String(row, "autoTranslationLanguage"),
		LastMessageAt:           timeCol(row, "lastMessageAt"),
		CreatedAt:               timeCol(row, "createdAt"),
		UpdatedAt:               timeCol(row, "updatedAt"),
		DeletedAt:               timeCol(row, "deletedAt"),
		TruncatedAt:             timeCol(row, "truncatedAt"),
		ExtraData:               extraFrom(row),
	}
	fromJSON(String(row, "ownCapabilities"), &c.OwnCapabilities)
	if id := String(row, "createdById"); id != "" {
		c.CreatedBy = &chat.User{ID: id}
	}
	return c
}

func UserToStorable(u chat.User) schema.Row {
	return schema.Row{
		"id":            u.ID,
		"name":          u.Name,
		"image":         u.Image,
		"role":          u.Role,
		"online":        boolToInt(u.Online),
		"banned":        boolToInt(u.Banned),
		"lastActive":    Time(u.LastActive),
		"createdAt":     Time(u.CreatedAt),
		"updatedAt":     Time(u.UpdatedAt),
		"deactivatedAt": Time(u.DeactivatedAt),
		"extraData":     extraText(u.ExtraData),
	}
}

func StorableToUser(row schema.Row) chat.User {
	return chat.User{
		ID:            String(row, "id"),
		Name:          String(row, "name"),
		Image:         String(row, "image"),
		Role:          String(row, "role"),
		Online:        Bool(row, "online"),
		Banned:        Bool(row, "banned"),
		LastActive:    timeCol(row, "lastActive"),
		CreatedAt:     timeCol(row, "createdAt"),
		UpdatedAt:     timeCol(row, "updatedAt"),
		DeactivatedAt: timeCol(row, "deactivatedAt"),
		ExtraData:     extraFrom(row),
	}
}

var memberKeys = wireKeys{
	"role":               "role",
	"channelRole":        "channel_role",
	"banned":             "banned",
	"shadowBanned":       "shadow_banned",
	"isModerator":        "is_moderator",
	"invited":            "invited",
	"notificationsMuted": "notifications_muted",
	"inviteAcceptedAt":   "invite_accepted_at",
	"inviteRejectedAt":   "invite_rejected_at",
	"archivedAt":         "archived_at",
	"pinnedAt":           "pinned_at",
	"createdAt":          "created_at",
	"updatedAt":          "updated_at",
}

func MemberToStorable(cid string, m chat.Member) schema.Row {
	row := schema.Row{
		"cid":                cid,
		"userId":             m.MemberUserID(),
		"role":               m.Role,
		"channelRole":        m.ChannelRole,
		"banned":             boolToInt(m.Banned),
		"shadowBanned":       boolToInt(m.ShadowBanned),
		"isModerator":        boolToInt(m.IsModerator),
		"invited":            boolToInt(m.Invited),
		"notificationsMuted": boolToInt(m.NotificationsMuted),
		"inviteAcceptedAt":   Time(m.InviteAcceptedAt),
		"inviteRejectedAt":   Time(m.InviteRejectedAt),
		"archivedAt":         Time(m.ArchivedAt),
		"pinnedAt":           Time(m.PinnedAt),
		"createdAt":          Time(m.CreatedAt),
		"updatedAt":          Time(m.UpdatedAt),
		"extraData":          extraText(m.ExtraData),
	}
	return present(row, m.Fields, memberKeys)
}

func StorableToMember(row schema.Row) chat.Member {
	return chat.Member{
		UserID:             String(row, "userId"),
		Role:               String(row, "role"),
		ChannelRole:        String(row, "channelRole"),
		Banned:             Bool(row, "banned"),
		ShadowBanned:       Bool(row, "shadowBanned"),
		IsModerator:        Bool(row, "isModerator"),
		Invited:            Bool(row, "invited"),
		NotificationsMuted: Bool(row, "notificationsMuted"),
		InviteAcceptedAt:   timeCol(row, "inviteAcceptedAt"),
		InviteRejectedAt:   timeCol(row, "inviteRejectedAt"),
		ArchivedAt:         timeCol(row, "archivedAt"),
		PinnedAt:           timeCol(row, "pinnedAt"),
		CreatedAt:          timeCol(row, "createdAt"),
		UpdatedAt:          timeCol(row, "updatedAt"),
		ExtraData:          extraFrom(row),
	}
}

func ReadToStorable(cid string, r chat.Read) schema.Row {
	row := schema.Row{
		"cid":               cid,
		"lastRead":          Time(r.LastRead),
		"lastReadMessageId": r.LastReadMessageID,
		"unreadMessages":    r.UnreadMessages,
	}
	if r.User != nil {
		row["userId"] = r.User.ID
	}
	return row
}

func StorableToRead(row schema.Row) chat.Read {
	return chat.Read{
		User:              &chat.User{ID: String(row, "userId")},
		LastRead:          timeCol(row, "lastRead"),
		LastReadMessageID: String(row, "lastReadMessageId"),
		UnreadMessages:    int(Int(row, "unreadMessages")),
	}
}
