package model

import "time"

// Project 代表一个项目分组。对话最多归属一个项目（可空外键）。
// 删除项目只清空成员对话的归属，不会级联删除对话。
type Project struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UID         string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"uid"`
	UserID      uint      `gorm:"index;not null" json:"userId"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	Description string    `gorm:"type:varchar(512)" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Project) TableName() string {
	return "projects"
}
