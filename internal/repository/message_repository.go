package repository

import (
	"context"
	"errors"
	"time"

	"astra-chat-go/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MessageRepository 定义了消息记录的持久化操作接口。
// 消息是追加写日志：除补挂搜索引用外不做任何修改，删除只随对话级联。
type MessageRepository interface {
	Insert(ctx context.Context, msg *model.Message) error
	InsertBatch(ctx context.Context, msgs []*model.Message) error
	// History 按时间升序返回对话的全部消息。
	History(ctx context.Context, conversationID uint) ([]model.Message, error)
	// Last 返回对话中最新的一条消息，不存在时返回 nil。
	Last(ctx context.Context, conversationID uint) (*model.Message, error)
	// AttachCitations 向指定消息补挂搜索引用，返回更新后的行。
	AttachCitations(ctx context.Context, id uint, citations []model.Citation) (*model.Message, error)
	// SearchLike 在用户的消息里做子串匹配，附带所属对话标题。
	SearchLike(ctx context.Context, userID uint, query string, limit int) ([]model.MessageSearchRow, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建一个新的 MessageRepository 实例。
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Insert(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) InsertBatch(ctx context.Context, msgs []*model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(msgs).Error
}

func (r *messageRepository) History(ctx context.Context, conversationID uint) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	return msgs, err
}

func (r *messageRepository) Last(ctx context.Context, conversationID uint) (*model.Message, error) {
	var msg model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) AttachCitations(ctx context.Context, id uint, citations []model.Citation) (*model.Message, error) {
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ?", id).
		Update("attachments", datatypes.NewJSONSlice(citations)).Error
	if err != nil {
		return nil, err
	}
	var msg model.Message
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) SearchLike(ctx context.Context, userID uint, query string, limit int) ([]model.MessageSearchRow, error) {
	var rows []struct {
		UID            string
		Content        string
		ConversationID uint
		Title          string
		CreatedAt      time.Time
	}
	err := r.db.WithContext(ctx).
		Table("messages").
		Select("messages.uid, messages.content, messages.conversation_id, conversations.title, messages.created_at").
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("conversations.user_id = ? AND messages.content LIKE ?", userID, "%"+query+"%").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	results := make([]model.MessageSearchRow, 0, len(rows))
	for _, row := range rows {
		results = append(results, model.MessageSearchRow{
			MessageUID:        row.UID,
			Content:           row.Content,
			ConversationID:    row.ConversationID,
			ConversationTitle: row.Title,
			CreatedAt:         model.LocalTime(row.CreatedAt),
		})
	}
	return results, nil
}
