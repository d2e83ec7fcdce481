// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import "time"

// MessageIndexTask represents a persisted message awaiting full-text indexing.
type MessageIndexTask struct {
	MessageUID        string    `json:"message_uid"`
	ConversationID    uint      `json:"conversation_id"`
	ConversationTitle string    `json:"conversation_title"`
	UserID            uint      `json:"user_id"`
	Role              string    `json:"role"`
	Content           string    `json:"content"`
	CreatedAt         time.Time `json:"created_at"`
}
