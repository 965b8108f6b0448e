package mapper

import (
	"chatcache/internal/chat"
	"chatcache/internal/data/schema"
)

func PollToStorable(p chat.Poll) schema.Row {
	return schema.Row{
		"id":                        p.ID,
		"name":                      p.Name,
		"description":               p.Description,
		"options":                   jsonText(p.Options),
		"votingVisibility":          p.VotingVisibility,
		"enforceUniqueVote":         boolToInt(p.EnforceUniqueVote),
		"maxVotesAllowed":           p.MaxVotesAllowed,
		"allowAnswers":              boolToInt(p.AllowAnswers),
		"allowUserSuggestedOptions": boolToInt(p.AllowUserSuggestedOptions),
		"isClosed":                  boolToInt(p.IsClosed),
		"voteCount":                 p.VoteCount,
		"voteCountsByOption":        jsonText(p.VoteCountsByOption),
		"latestVotesByOption":       jsonText(p.LatestVotesByOption),
		"latestAnswers":             jsonText(p.LatestAnswers),
		"ownVotes":                  jsonText(p.OwnVotes),
		"createdById":               p.CreatedByID,
		"createdAt":                 Time(p.CreatedAt),
		"updatedAt":                 Time(p.UpdatedAt),
		"extraData":                 extraText(p.ExtraData),
	}
}

func StorableToPoll(row schema.Row) chat.Poll {
	p := chat.Poll{
		ID:                        String(row, "id"),
		Name:                      String(row, "name"),
		Description:               String(row, "description"),
		VotingVisibility:          String(row, "votingVisibility"),
		EnforceUniqueVote:         Bool(row, "enforceUniqueVote"),
		MaxVotesAllowed:           int(Int(row, "maxVotesAllowed")),
		AllowAnswers:              Bool(row, "allowAnswers"),
		AllowUserSuggestedOptions: Bool(row, "allowUserSuggestedOptions"),
		IsClosed:                  Bool(row, "isClosed"),
		VoteCount:                 int(Int(row, "voteCount")),
		CreatedByID:               String(row, "createdById"),
		CreatedAt:                 timeCol(row, "createdAt"),
		UpdatedAt:                 timeCol(row, "updatedAt"),
		ExtraData:                 extraFrom(row),
	}
	fromJSON(String(row, "options"), &p.Options)
	fromJSON(String(row, "voteCountsByOption"), &p.VoteCountsByOption)
	fromJSON(String(row, "latestVotesByOption"), &p.LatestVotesByOption)
	fromJSON(String(row, "latestAnswers"), &p.LatestAnswers)
	fromJSON(String(row, "ownVotes"), &p.OwnVotes)
	return p
}

// DraftToStorable returns the draft row and its draftMessage detail row. The
// detail row always carries the draft's parent id, "" for channel drafts.
func DraftToStorable(d chat.Draft) (draft, message schema.Row) {
	draft = schema.Row{
		"cid":       d.ChannelCID,
		"parentId":  d.ParentID,
		"messageId": d.Message.ID,
		"createdAt": Time(d.CreatedAt),
	}
	message = schema.Row{
		"id":              d.Message.ID,
		"cid":             d.ChannelCID,
		"parentId":        d.ParentID,
		"text":            d.Message.Text,
		"type":            d.Message.Type,
		"attachments":     jsonText(d.Message.Attachments),
		"mentionedUsers":  jsonText(d.Message.MentionedUsersIDs),
		"quotedMessageId": d.Message.QuotedMessageID,
		"pollId":          d.Message.PollID,
		"showInChannel":   boolToInt(d.Message.ShowInChannel),
		"silent":          boolToInt(d.Message.Silent),
		"extraData":       extraText(d.Message.ExtraData),
	}
	return draft, message
}

func StorableToDraft(draft, message schema.Row) chat.Draft {
	d := chat.Draft{
		ChannelCID: String(draft, "cid"),
		ParentID:   String(draft, "parentId"),
		CreatedAt:  timeCol(draft, "createdAt"),
		Message: chat.DraftMessage{
			ID:              String(message, "id"),
			Text:            String(message, "text"),
			Type:            String(message, "type"),
			ParentID:        String(message, "parentId"),
			QuotedMessageID: String(message, "quotedMessageId"),
			PollID:          String(message, "pollId"),
			ShowInChannel:   Bool(message, "showInChannel"),
			Silent:          Bool(message, "silent"),
			ExtraData:       extraFrom(message),
		},
	}
	fromJSON(String(message, "attachments"), &d.Message.Attachments)
	fromJSON(String(message, "mentionedUsers"), &d.Message.MentionedUsersIDs)
	return d
}
