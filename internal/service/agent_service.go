package service

import (
	"context"
	"fmt"

	"astra-chat-go/internal/model"
	"astra-chat-go/internal/repository"
)

// AgentService 管理可选择的助手人格。
type AgentService interface {
	ListPublished(ctx context.Context) ([]model.Agent, error)
	// Select 选中一个已发布的人格，id 为 nil 时清除选择。
	Select(ctx context.Context, userID uint, id *uint) error
	// Selected 返回用户当前选中的人格，未选中时返回 nil。
	Selected(ctx context.Context, userID uint) (*model.Agent, error)
}

type agentService struct {
	agents   repository.AgentRepository
	sessions repository.SessionRepository
}

func NewAgentService(agents repository.AgentRepository, sessions repository.SessionRepository) AgentService {
	return &agentService{agents: agents, sessions: sessions}
}

func (s *agentService) ListPublished(ctx context.Context) ([]model.Agent, error) {
	return s.agents.FindPublished(ctx)
}

func (s *agentService) Select(ctx context.Context, userID uint, id *uint) error {
	if id == nil {
		return s.sessions.SetSelectedAgent(ctx, userID, nil)
	}
	agent, err := s.agents.FindByID(ctx, *id)
	if err != nil {
		return fmt.Errorf("failed to load agent: %w", err)
	}
	if agent == nil || !agent.IsPublished {
		return fmt.Errorf("agent %d not available", *id)
	}
	return s.sessions.SetSelectedAgent(ctx, userID, id)
}

func (s *agentService) Selected(ctx context.Context, userID uint) (*model.Agent, error) {
	id, ok, err := s.sessions.SelectedAgent(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return s.agents.FindByID(ctx, id)
}
