package repository

import (
	"context"
	"errors"

	"astra-chat-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriptionRepository 定义了订阅记录的持久化操作接口。
type SubscriptionRepository interface {
	// HasAny 判断用户是否存在任意订阅记录。
	HasAny(ctx context.Context, userID uint) (bool, error)
	// Upsert 以 (user_id, product_id) 为冲突键插入或更新订阅记录。
	Upsert(ctx context.Context, sub *model.Subscription) error
	// FindActive 返回用户最新的 active/trialing 订阅，不存在时返回 nil。
	FindActive(ctx context.Context, userID uint) (*model.Subscription, error)
}

type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository 创建一个新的 SubscriptionRepository 实例。
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) HasAny(ctx context.Context, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count > 0, err
}

func (r *subscriptionRepository) Upsert(ctx context.Context, sub *model.Subscription) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "started_at", "updated_at"}),
	}).Create(sub).Error
}

func (r *subscriptionRepository) FindActive(ctx context.Context, userID uint) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, []string{model.SubscriptionActive, model.SubscriptionTrialing}).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}
