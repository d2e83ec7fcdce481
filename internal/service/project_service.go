package service

import (
	"context"
	"fmt"

	"astra-chat-go/internal/model"
	"astra-chat-go/internal/repository"
	"astra-chat-go/internal/store"

	"github.com/google/uuid"
)

// ProjectService 管理项目分组。
type ProjectService interface {
	Create(ctx context.Context, userID uint, title, description string) (*model.Project, error)
	List(ctx context.Context, userID uint) ([]model.Project, error)
	// Delete 删除项目并清空成员对话的归属，返回被清空归属的对话数。
	// 对话本身绝不随项目删除。
	Delete(ctx context.Context, userID uint, id uint) (int64, error)
}

type projectService struct {
	projects      repository.ProjectRepository
	conversations repository.ConversationRepository
	mirror        *store.Mirror
}

func NewProjectService(
	projects repository.ProjectRepository,
	conversations repository.ConversationRepository,
	mirror *store.Mirror,
) ProjectService {
	return &projectService{projects: projects, conversations: conversations, mirror: mirror}
}

func (s *projectService) Create(ctx context.Context, userID uint, title, description string) (*model.Project, error) {
	if title == "" {
		return nil, fmt.Errorf("project title is required")
	}
	project := &model.Project{
		UID:         uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Description: description,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return project, nil
}

func (s *projectService) List(ctx context.Context, userID uint) ([]model.Project, error) {
	return s.projects.FindAll(ctx, userID)
}

func (s *projectService) Delete(ctx context.Context, userID uint, id uint) (int64, error) {
	project, err := s.projects.FindByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil || project.UserID != userID {
		return 0, fmt.Errorf("project %d not found", id)
	}

	cleared, err := s.conversations.ClearProject(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to detach conversations: %w", err)
	}
	if err := s.projects.Delete(ctx, id); err != nil {
		return 0, fmt.Errorf("failed to delete project: %w", err)
	}

	s.mirror.ClearProject(id)
	return cleared, nil
}
