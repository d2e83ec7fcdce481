package service

import (
	"context"
	"regexp"
	"strings"

	"astra-chat-go/internal/model"
	"astra-chat-go/internal/repository"
	"astra-chat-go/pkg/log"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

var (
	crlfRe       = regexp.MustCompile(`\r\n?`)
	multiNLRe    = regexp.MustCompile(`\n{2,}`)
	inlineWSRe   = regexp.MustCompile(`[ \t]+`)
	blankSplitRe = regexp.MustCompile(`\n\s*\n`)
)

// NormalizeText 归一化模型回复：统一换行、压缩连续空行和行内空白、去首尾空白。
func NormalizeText(s string) string {
	s = crlfRe.ReplaceAllString(s, "\n")
	s = multiNLRe.ReplaceAllString(s, "\n")
	s = inlineWSRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CollapseEcho 检测并折叠模型把同一段文本重复输出多遍的情况。
// 先在归一化文本上尝试 2 到 4 倍的整体重复；再尝试以空行分隔、
// 前后两半完全相同的情况。都不命中时返回去首尾空白的原文。
func CollapseEcho(s string) string {
	normalized := NormalizeText(s)
	if normalized == "" {
		return ""
	}

	for factor := 2; factor <= 4; factor++ {
		if len(normalized)%factor != 0 {
			continue
		}
		part := normalized[:len(normalized)/factor]
		if strings.Repeat(part, factor) == normalized {
			return strings.TrimSpace(part)
		}
	}

	if halves := blankSplitRe.Split(strings.TrimSpace(s), 2); len(halves) == 2 {
		first := NormalizeText(halves[0])
		if first != "" && first == NormalizeText(halves[1]) {
			return strings.TrimSpace(halves[0])
		}
	}

	return strings.TrimSpace(s)
}

// mediaList 把媒体 URL 列表转成落库字段。无媒体时序列化为空数组而不是 null，
// 下游读取无需判空。
func mediaList(urls []string) datatypes.JSONSlice[string] {
	if urls == nil {
		urls = []string{}
	}
	return datatypes.NewJSONSlice(urls)
}

// PersistInput 是一次助手回复落库的输入。
type PersistInput struct {
	ConversationID uint
	Result         DispatchResult
	MessageType    string
	Citations      []model.Citation
	AgentID        *uint
}

// Reconciler 把模型产出整理为对话中至多一条新的助手消息。
type Reconciler interface {
	// Persist 折叠重复文本、复用已存在的同内容助手行、落库并补挂引用。
	Persist(ctx context.Context, in PersistInput) (*model.Message, error)
}

type reconciler struct {
	messages repository.MessageRepository
}

func NewReconciler(messages repository.MessageRepository) Reconciler {
	return &reconciler{messages: messages}
}

func (r *reconciler) Persist(ctx context.Context, in PersistInput) (*model.Message, error) {
	text := CollapseEcho(in.Result.Text)

	// 对话最后一行已是归一化后同内容的助手消息时直接复用，不再插入
	last, err := r.messages.Last(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}
	if last != nil && last.Role == model.RoleAssistant && NormalizeText(last.Content) == NormalizeText(text) {
		return r.attach(ctx, last, in.Citations), nil
	}

	msg := &model.Message{
		UID:            uuid.NewString(),
		ConversationID: in.ConversationID,
		Role:           model.RoleAssistant,
		Content:        text,
		MessageType:    in.MessageType,
		ModelType:      in.Result.Model,
		AgentID:        in.AgentID,
		Images:         mediaList(in.Result.Images),
		Videos:         mediaList(in.Result.Videos),
	}
	if err := r.messages.Insert(ctx, msg); err != nil {
		return nil, err
	}

	return r.attach(ctx, msg, in.Citations), nil
}

// attach 补挂引用。补挂失败只降级记日志，消息本身已经落库。
func (r *reconciler) attach(ctx context.Context, msg *model.Message, citations []model.Citation) *model.Message {
	if len(citations) == 0 {
		return msg
	}
	updated, err := r.messages.AttachCitations(ctx, msg.ID, citations)
	if err != nil {
		log.Warnf("failed to attach citations to message %d: %v", msg.ID, err)
		return msg
	}
	return updated
}
