// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"errors"
	"time"

	"astra-chat-go/internal/model"

	"gorm.io/gorm"
)

// ConversationRepository 定义了对话记录的持久化操作接口。
type ConversationRepository interface {
	Create(ctx context.Context, conv *model.Conversation) error
	FindByID(ctx context.Context, id uint) (*model.Conversation, error)
	// FindAllWithMessages 返回用户的全部对话（按最近更新排序），并内嵌按时间升序的消息。
	FindAllWithMessages(ctx context.Context, userID uint) ([]model.Conversation, error)
	UpdateTitle(ctx context.Context, id uint, title string) error
	// UpdateProject 设置或清除对话的项目归属，nil 表示移出项目。
	UpdateProject(ctx context.Context, id uint, projectID *uint) error
	// ClearProject 清空指定项目下所有对话的归属，返回受影响的行数。
	ClearProject(ctx context.Context, projectID uint) (int64, error)
	// Touch 刷新对话的 updated_at。
	Touch(ctx context.Context, id uint) error
	// Delete 删除对话及其全部消息。
	Delete(ctx context.Context, id uint) error
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Create(ctx context.Context, conv *model.Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

func (r *conversationRepository) FindByID(ctx context.Context, id uint) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).First(&conv, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) FindAllWithMessages(ctx context.Context, userID uint) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			// 创建时间相同的消息按插入顺序（主键）稳定排序
			return db.Order("created_at ASC, id ASC")
		}).
		Find(&convs).Error
	return convs, err
}

func (r *conversationRepository) UpdateTitle(ctx context.Context, id uint, title string) error {
	return r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", id).
		Update("title", title).Error
}

func (r *conversationRepository) UpdateProject(ctx context.Context, id uint, projectID *uint) error {
	return r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", id).
		Update("project_id", projectID).Error
}

func (r *conversationRepository) ClearProject(ctx context.Context, projectID uint) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("project_id = ?", projectID).
		Update("project_id", nil)
	return result.RowsAffected, result.Error
}

func (r *conversationRepository) Touch(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", time.Now()).Error
}

func (r *conversationRepository) Delete(ctx context.Context, id uint) error {
	// 先删消息再删对话，保证存储层不残留孤儿消息
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Conversation{}, id).Error
	})
}
