package model

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// AgentMetadata 是人格文档里的行为元数据。
type AgentMetadata struct {
	Instructions string   `json:"instructions,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	Flags        []string `json:"flags,omitempty"`
}

// AgentPersona 是一个可复用的系统提示词 + 元数据包。
type AgentPersona struct {
	SystemPrompt string        `json:"system_prompt"`
	Metadata     AgentMetadata `json:"metadata"`
}

// Agent 代表一个助手人格。被选中的 Agent 作为只读输入参与上下文组装，
// 并以 agent_id 引用的形式附着在其生效期间产生的助手消息上。
type Agent struct {
	ID          uint                              `gorm:"primaryKey" json:"id"`
	Name        string                            `gorm:"type:varchar(128);not null" json:"name"`
	Slug        string                            `gorm:"type:varchar(128);uniqueIndex;not null" json:"slug"`
	Description string                            `gorm:"type:varchar(512)" json:"description,omitempty"`
	Persona     datatypes.JSONType[AgentPersona]  `gorm:"type:json" json:"persona"`
	IsPublished bool                              `gorm:"not null;default:false" json:"isPublished"`
	CreatedAt   time.Time                         `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time                         `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Agent) TableName() string {
	return "agents"
}

// SystemPrompt 返回人格提示词与补充指令拼接后的完整 system 文本。
// 两者皆空时返回空串。
func (a *Agent) SystemPrompt() string {
	p := a.Persona.Data()
	full := strings.TrimSpace(p.SystemPrompt + "\n\n" + p.Metadata.Instructions)
	return full
}
