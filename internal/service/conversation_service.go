package service

import (
	"context"
	"fmt"

	"astra-chat-go/internal/model"
	"astra-chat-go/internal/repository"
	"astra-chat-go/internal/store"
	"astra-chat-go/pkg/log"

	"github.com/google/uuid"
)

// ConversationService 管理对话的生命周期和内存镜像。
type ConversationService interface {
	// Load 全量加载用户的对话到镜像，并恢复上次的活动对话。
	Load(ctx context.Context, userID uint) ([]model.Conversation, error)
	// Create 新建对话并设为活动对话。
	Create(ctx context.Context, userID uint, projectID *uint) (*model.Conversation, error)
	// Delete 删除对话，返回新的活动对话 ID（0 表示无）。
	Delete(ctx context.Context, userID uint, id uint) (uint, error)
	SetActive(ctx context.Context, userID uint, id uint) error
	// AssignProject 设置或清除对话的项目归属。
	AssignProject(ctx context.Context, userID uint, id uint, projectID *uint) (*model.Conversation, error)
}

type conversationService struct {
	conversations repository.ConversationRepository
	projects      repository.ProjectRepository
	sessions      repository.SessionRepository
	mirror        *store.Mirror
}

func NewConversationService(
	conversations repository.ConversationRepository,
	projects repository.ProjectRepository,
	sessions repository.SessionRepository,
	mirror *store.Mirror,
) ConversationService {
	return &conversationService{
		conversations: conversations,
		projects:      projects,
		sessions:      sessions,
		mirror:        mirror,
	}
}

func (s *conversationService) Load(ctx context.Context, userID uint) ([]model.Conversation, error) {
	convs, err := s.conversations.FindAllWithMessages(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}
	s.mirror.Replace(convs)

	// 会话层记住的活动对话仍然存在时恢复它
	if id, ok, err := s.sessions.ActiveConversation(ctx, userID); err == nil && ok {
		s.mirror.SetActive(id)
	} else if err != nil {
		log.Warnf("failed to restore active conversation for user %d: %v", userID, err)
	}
	return s.mirror.Conversations(), nil
}

func (s *conversationService) Create(ctx context.Context, userID uint, projectID *uint) (*model.Conversation, error) {
	if projectID != nil {
		project, err := s.projects.FindByID(ctx, *projectID)
		if err != nil {
			return nil, fmt.Errorf("failed to load project: %w", err)
		}
		if project == nil || project.UserID != userID {
			return nil, fmt.Errorf("project %d not found", *projectID)
		}
	}

	conv := &model.Conversation{
		UID:       uuid.NewString(),
		UserID:    userID,
		ProjectID: projectID,
		Title:     model.DefaultTitle,
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	s.mirror.Insert(*conv)
	if err := s.sessions.SetActiveConversation(ctx, userID, conv.ID); err != nil {
		log.Warnf("failed to remember active conversation %d: %v", conv.ID, err)
	}
	return conv, nil
}

func (s *conversationService) Delete(ctx context.Context, userID uint, id uint) (uint, error) {
	conv, err := s.conversations.FindByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to load conversation: %w", err)
	}
	if conv == nil || conv.UserID != userID {
		return 0, fmt.Errorf("conversation %d not found", id)
	}

	if err := s.conversations.Delete(ctx, id); err != nil {
		return 0, fmt.Errorf("failed to delete conversation: %w", err)
	}

	active := s.mirror.Remove(id)
	if active == 0 {
		if err := s.sessions.ClearActiveConversation(ctx, userID); err != nil {
			log.Warnf("failed to clear active conversation: %v", err)
		}
	} else {
		if err := s.sessions.SetActiveConversation(ctx, userID, active); err != nil {
			log.Warnf("failed to remember active conversation %d: %v", active, err)
		}
	}
	return active, nil
}

func (s *conversationService) SetActive(ctx context.Context, userID uint, id uint) error {
	conv, err := s.conversations.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}
	if conv == nil || conv.UserID != userID {
		return fmt.Errorf("conversation %d not found", id)
	}
	s.mirror.SetActive(id)
	return s.sessions.SetActiveConversation(ctx, userID, id)
}

func (s *conversationService) AssignProject(ctx context.Context, userID uint, id uint, projectID *uint) (*model.Conversation, error) {
	conv, err := s.conversations.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if conv == nil || conv.UserID != userID {
		return nil, fmt.Errorf("conversation %d not found", id)
	}
	if projectID != nil {
		project, err := s.projects.FindByID(ctx, *projectID)
		if err != nil {
			return nil, fmt.Errorf("failed to load project: %w", err)
		}
		if project == nil || project.UserID != userID {
			return nil, fmt.Errorf("project %d not found", *projectID)
		}
	}

	if err := s.conversations.UpdateProject(ctx, id, projectID); err != nil {
		return nil, fmt.Errorf("failed to update project assignment: %w", err)
	}
	s.mirror.SetProject(id, projectID)

	conv.ProjectID = projectID
	return conv, nil
}
