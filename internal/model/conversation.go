// Package model 包含了应用的数据模型定义。
package model

import (
	"time"

	"gorm.io/datatypes"
)

// 消息角色。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// DefaultTitle 是新建对话的占位标题。
// 对话停留在占位标题时，首条用户消息会被用来派生正式标题。
const DefaultTitle = "New Chat"

// Conversation 代表一个对话，消息按创建时间递增排序（同刻按插入顺序）。
type Conversation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UID       string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"uid"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	ProjectID *uint     `gorm:"index" json:"projectId"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
	Messages  []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"messages"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Citation 是附着在助手消息上的一条搜索引用。
type Citation struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Message 代表对话中的一条消息（一个回合）。
// 该行结构是调度/落库之间的线上契约，重放对话时必须无损往返。
// 消息创建后不再修改，唯一的例外是向助手消息补挂搜索引用。
type Message struct {
	ID             uint                           `gorm:"primaryKey" json:"id"`
	UID            string                         `gorm:"type:varchar(36);uniqueIndex;not null" json:"uid"`
	ConversationID uint                           `gorm:"index:idx_messages_conv_created;not null" json:"conversationId"`
	Role           string                         `gorm:"type:varchar(16);not null" json:"role"`
	Content        string                         `gorm:"type:text;not null" json:"content"`
	MessageType    string                         `gorm:"type:varchar(16);not null;default:'text'" json:"messageType"`
	ModelType      string                         `gorm:"type:varchar(32)" json:"modelType"`
	Images         datatypes.JSONSlice[string]    `gorm:"type:json" json:"images"`
	Videos         datatypes.JSONSlice[string]    `gorm:"type:json" json:"videos"`
	Attachments    datatypes.JSONSlice[Citation]  `gorm:"type:json" json:"attachments"`
	FileName       string                         `gorm:"type:varchar(255)" json:"fileName,omitempty"`
	FileSnippet    string                         `gorm:"type:varchar(512)" json:"fileSnippet,omitempty"`
	AgentID        *uint                          `gorm:"index" json:"agentId"`
	CreatedAt      time.Time                      `gorm:"autoCreateTime;index:idx_messages_conv_created" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}

// MessageSearchRow 是消息全文检索的结果行，携带所属对话标题用于展示。
type MessageSearchRow struct {
	MessageUID        string    `json:"messageUid"`
	Content           string    `json:"content"`
	ConversationID    uint      `json:"conversationId"`
	ConversationTitle string    `json:"conversationTitle"`
	CreatedAt         LocalTime `json:"createdAt"`
}
