package chat

import (
	"encoding/json"
	"time"
)

// TaskType names a mutation that can be replayed against the backend.
type TaskType string

const (
	TaskSendReaction   TaskType = "send-reaction"
	TaskDeleteReaction TaskType = "delete-reaction"
	TaskDeleteMessage  TaskType = "delete-message"
	TaskSendMessage    TaskType = "send-message"
)

// PendingTask is a locally queued mutation awaiting backend confirmation.
type PendingTask struct {
	ID          int64           `json:"id,omitempty"`
	Type        TaskType        `json:"type"`
	ChannelType string          `json:"channelType,omitempty"`
	ChannelID   string          `json:"channelId,omitempty"`
	MessageID   string          `json:"messageId,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedAt   time.Time       `json:"createdAt,omitzero"`
}

// SendReactionPayload is the payload of a send-reaction task.
type SendReactionPayload struct {
	Reaction      Reaction `json:"reaction"`
	EnforceUnique bool     `json:"enforce_unique,omitempty"`
	SkipPush      bool     `json:"skip_push,omitempty"`
}

// DeleteReactionPayload is the payload of a delete-reaction task.
type DeleteReactionPayload struct {
	ReactionType string `json:"reaction_type"`
}

// DeleteMessagePayload is the payload of a delete-message task.
type DeleteMessagePayload struct {
	HardDelete bool `json:"hard_delete,omitempty"`
}

// SendMessagePayload is the payload of a send-message task.
type SendMessagePayload struct {
	Message Message `json:"message"`
}

// SyncStatus is the per-user sync watermark.
type SyncStatus struct {
	UserID       string          `json:"userId"`
	LastSyncedAt time.Time       `json:"lastSyncedAt,omitzero"`
	AppSettings  json.RawMessage `json:"appSettings,omitempty"`
}
