package service

import (
	"context"
	"fmt"
	"time"

	"astra-chat-go/internal/config"
	"astra-chat-go/internal/model"
	"astra-chat-go/internal/repository"
	"astra-chat-go/pkg/log"
)

// BillingService 维护用户的订阅档位。
type BillingService interface {
	// EnsureFreeTier 在用户没有任何订阅记录时授予免费档。幂等。
	EnsureFreeTier(ctx context.Context, userID uint)
	// ActiveSubscription 返回用户当前生效的订阅，不存在时返回 nil。
	ActiveSubscription(ctx context.Context, userID uint) (*model.Subscription, error)
}

type billingService struct {
	subscriptions repository.SubscriptionRepository
	cfg           *config.BillingConfig
}

func NewBillingService(subscriptions repository.SubscriptionRepository, cfg *config.BillingConfig) BillingService {
	return &billingService{subscriptions: subscriptions, cfg: cfg}
}

// EnsureFreeTier 的失败只记日志：免费档授予绝不阻断登录。
func (s *billingService) EnsureFreeTier(ctx context.Context, userID uint) {
	has, err := s.subscriptions.HasAny(ctx, userID)
	if err != nil {
		log.Warnf("failed to check subscriptions for user %d: %v", userID, err)
		return
	}
	if has {
		return
	}

	sub := &model.Subscription{
		UserID:    userID,
		ProductID: s.cfg.FreeProductID,
		Status:    model.SubscriptionActive,
		StartedAt: time.Now(),
	}
	if err := s.subscriptions.Upsert(ctx, sub); err != nil {
		log.Warnf("failed to grant free tier to user %d: %v", userID, err)
	}
}

func (s *billingService) ActiveSubscription(ctx context.Context, userID uint) (*model.Subscription, error) {
	sub, err := s.subscriptions.FindActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return sub, nil
}
