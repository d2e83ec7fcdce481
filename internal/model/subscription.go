package model

import "time"

// 订阅状态。
const (
	SubscriptionActive   = "active"
	SubscriptionTrialing = "trialing"
)

// Subscription 定义了 user_subscriptions 表的 ORM 模型。
// 每个用户预期最多存在一条 active/trialing 记录；
// 会话启动时若不存在任何记录，则自动授予免费档。
type Subscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_sub_user_product;not null" json:"userId"`
	ProductID string    `gorm:"type:varchar(64);uniqueIndex:idx_sub_user_product;not null" json:"productId"`
	Status    string    `gorm:"type:varchar(32);not null" json:"status"`
	StartedAt time.Time `json:"startedAt"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Subscription) TableName() string {
	return "user_subscriptions"
}
