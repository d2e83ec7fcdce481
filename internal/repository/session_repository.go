package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const sessionTTL = 7 * 24 * time.Hour

// SessionRepository 管理客户端会话状态（选中的人格、活动对话），
// 存放在 Redis 中，会话重启后恢复。
type SessionRepository interface {
	// SelectedAgent 返回用户选中的人格 ID；未选中时 ok 为 false。
	SelectedAgent(ctx context.Context, userID uint) (agentID uint, ok bool, err error)
	// SetSelectedAgent 记录用户选中的人格，nil 表示清除选择。
	SetSelectedAgent(ctx context.Context, userID uint, agentID *uint) error
	// ActiveConversation 返回上次活动的对话 ID；不存在时 ok 为 false。
	ActiveConversation(ctx context.Context, userID uint) (convID uint, ok bool, err error)
	SetActiveConversation(ctx context.Context, userID uint, convID uint) error
	ClearActiveConversation(ctx context.Context, userID uint) error
}

type redisSessionRepository struct {
	redisClient *redis.Client
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。
func NewSessionRepository(redisClient *redis.Client) SessionRepository {
	return &redisSessionRepository{redisClient: redisClient}
}

func agentKey(userID uint) string {
	return fmt.Sprintf("user:%d:selected_agent", userID)
}

func activeConvKey(userID uint) string {
	return fmt.Sprintf("user:%d:active_conversation", userID)
}

func (r *redisSessionRepository) SelectedAgent(ctx context.Context, userID uint) (uint, bool, error) {
	return r.getUint(ctx, agentKey(userID))
}

func (r *redisSessionRepository) SetSelectedAgent(ctx context.Context, userID uint, agentID *uint) error {
	if agentID == nil {
		return r.redisClient.Del(ctx, agentKey(userID)).Err()
	}
	if err := r.redisClient.Set(ctx, agentKey(userID), strconv.FormatUint(uint64(*agentID), 10), sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to set selected agent: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) ActiveConversation(ctx context.Context, userID uint) (uint, bool, error) {
	return r.getUint(ctx, activeConvKey(userID))
}

func (r *redisSessionRepository) SetActiveConversation(ctx context.Context, userID uint, convID uint) error {
	if err := r.redisClient.Set(ctx, activeConvKey(userID), strconv.FormatUint(uint64(convID), 10), sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to set active conversation: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) ClearActiveConversation(ctx context.Context, userID uint) error {
	return r.redisClient.Del(ctx, activeConvKey(userID)).Err()
}

func (r *redisSessionRepository) getUint(ctx context.Context, key string) (uint, bool, error) {
	val, err := r.redisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get session key %s: %w", key, err)
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("malformed session value for %s: %w", key, err)
	}
	return uint(id), true, nil
}
