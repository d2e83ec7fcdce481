package repository

import (
	"context"
	"errors"

	"astra-chat-go/internal/model"

	"gorm.io/gorm"
)

// AgentRepository 定义了助手人格记录的持久化操作接口。
type AgentRepository interface {
	FindByID(ctx context.Context, id uint) (*model.Agent, error)
	// FindPublished 返回全部已发布的人格，按创建时间倒序。
	FindPublished(ctx context.Context) ([]model.Agent, error)
}

type agentRepository struct {
	db *gorm.DB
}

// NewAgentRepository 创建一个新的 AgentRepository 实例。
func NewAgentRepository(db *gorm.DB) AgentRepository {
	return &agentRepository{db: db}
}

func (r *agentRepository) FindByID(ctx context.Context, id uint) (*model.Agent, error) {
	var agent model.Agent
	err := r.db.WithContext(ctx).First(&agent, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &agent, nil
}

func (r *agentRepository) FindPublished(ctx context.Context) ([]model.Agent, error) {
	var agents []model.Agent
	err := r.db.WithContext(ctx).
		Where("is_published = ?", true).
		Order("created_at DESC").
		Find(&agents).Error
	return agents, err
}
