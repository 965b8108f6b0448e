package mapper

import (
	"encoding/json"

	"github.com/google/uuid"

	"chatcache/internal/chat"
	"chatcache/internal/data/schema"
)

// channelQueryNamespace scopes name-based query keys.
var channelQueryNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("chatcache:channelQueries"))

// ChannelQueryKey returns a stable key for a filter/sort pair. Map keys are
// serialized in sorted order, so equal filters always produce the same key.
// It reports false when both filter and sort are empty.
func ChannelQueryKey(filter chat.Filter, sort chat.Sort) (string, bool) {
	if len(filter) == 0 && len(sort) == 0 {
		return "", false
	}
	canonical, err := json.Marshal(struct {
		Filter chat.Filter `json:"filter"`
		Sort   chat.Sort   `json:"sort"`
	}{filter, sort})
	if err != nil {
		return "", false
	}
	return uuid.NewSHA1(channelQueryNamespace, canonical).String(), true
}

func ChannelQueryToStorable(key string, cids []string) schema.Row {
	if cids == nil {
		cids = []string{}
	}
	b, _ := json.Marshal(cids)
	return schema.Row{"id": key, "cids": string(b)}
}

func StorableToChannelQuery(row schema.Row) []string {
	var cids []string
	fromJSON(String(row, "cids"), &cids)
	return cids
}

func SyncStatusToStorable(s chat.SyncStatus) schema.Row {
	row := schema.Row{
		"userId":       s.UserID,
		"lastSyncedAt": Time(s.LastSyncedAt),
	}
	if len(s.AppSettings) > 0 {
		row["appSettings"] = string(s.AppSettings)
	}
	return row
}

func StorableToSyncStatus(row schema.Row) chat.SyncStatus {
	s := chat.SyncStatus{
		UserID:       String(row, "userId"),
		LastSyncedAt: timeCol(row, "lastSyncedAt"),
	}
	if settings := String(row, "appSettings"); settings != "" {
		s.AppSettings = json.RawMessage(settings)
	}
	return s
}

// PendingTaskToStorable omits the id so the database assigns one.
func PendingTaskToStorable(t chat.PendingTask) schema.Row {
	row := schema.Row{
		"type":        string(t.Type),
		"channelType": t.ChannelType,
		"channelId":   t.ChannelID,
		"messageId":   t.MessageID,
		"payload":     string(t.Payload),
		"createdAt":   Time(t.CreatedAt),
	}
	if t.ID != 0 {
		row["id"] = t.ID
	}
	return row
}

func StorableToPendingTask(row schema.Row) chat.PendingTask {
	t := chat.PendingTask{
		ID:          Int(row, "id"),
		Type:        chat.TaskType(String(row, "type")),
		ChannelType: String(row, "channelType"),
		ChannelID:   String(row, "channelId"),
		MessageID:   String(row, "messageId"),
		CreatedAt:   timeCol(row, "createdAt"),
	}
	if payload := String(row, "payload"); payload != "" {
		t.Payload = json.RawMessage(payload)
	}
	return t
}
