// Package service 实现了业务逻辑层。
package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"astra-chat-go/internal/model"
	"astra-chat-go/internal/repository"
	"astra-chat-go/internal/store"
	"astra-chat-go/pkg/kafka"
	"astra-chat-go/pkg/llm"
	"astra-chat-go/pkg/log"
	"astra-chat-go/pkg/tasks"

	"github.com/google/uuid"
)

// titleMaxLen 从首条消息派生标题时的截断长度。
const titleMaxLen = 50

// fileSnippetMaxLen 文件标记行保留的内容预览长度。
const fileSnippetMaxLen = 200

// SendInput 是一次消息发送的输入。
type SendInput struct {
	UserID         uint
	ConversationID uint
	Content        string
	Modality       string
	WithWebSearch  bool
	Attachments    []Attachment
}

// SendOutcome 是一次消息发送的结果。
// Unpersisted 为 true 表示助手消息只存在于内存镜像中，落库失败了。
type SendOutcome struct {
	ConversationID   uint
	UserMessage      *model.Message
	AssistantMessage *model.Message
	Unpersisted      bool
}

// ChatService 是消息发送管线的编排入口。
type ChatService interface {
	SendMessage(ctx context.Context, in SendInput) (*SendOutcome, error)
}

type chatService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	agents        repository.AgentRepository
	sessions      repository.SessionRepository
	assembler     ContextService
	dispatcher    DispatchService
	reconciler    Reconciler
	mirror        *store.Mirror
	indexEnabled  bool
}

func NewChatService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	agents repository.AgentRepository,
	sessions repository.SessionRepository,
	assembler ContextService,
	dispatcher DispatchService,
	reconciler Reconciler,
	mirror *store.Mirror,
	indexEnabled bool,
) ChatService {
	return &chatService{
		conversations: conversations,
		messages:      messages,
		agents:        agents,
		sessions:      sessions,
		assembler:     assembler,
		dispatcher:    dispatcher,
		reconciler:    reconciler,
		mirror:        mirror,
		indexEnabled:  indexEnabled,
	}
}

// SendMessage 执行完整的发送管线：
// 没有目标对话时按需新建；用户消息先落库（失败则整体中止）；
// 附件生成文件标记行；组装上下文、按通道派发、整理助手回复落库；
// 最后刷新对话元数据并把两端消息追加进内存镜像。
func (s *chatService) SendMessage(ctx context.Context, in SendInput) (*SendOutcome, error) {
	conv, err := s.resolveConversation(ctx, in)
	if err != nil {
		return nil, err
	}
	in.ConversationID = conv.ID

	agent, agentID := s.selectedAgent(ctx, in.UserID)
	modality := ParseModality(in.Modality)

	// 用户消息先落库；落库失败时不派发，本轮不产生任何痕迹
	userMsg := &model.Message{
		UID:            uuid.NewString(),
		ConversationID: in.ConversationID,
		Role:           model.RoleUser,
		Content:        in.Content,
		MessageType:    "text",
		AgentID:        agentID,
	}
	if err := s.messages.Insert(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}
	s.mirror.AppendMessage(in.ConversationID, *userMsg)

	// 每个附件一条文件标记行（内容为空，靠 file_name 展示），标记行失败不阻断发送
	for _, att := range in.Attachments {
		marker := &model.Message{
			UID:            uuid.NewString(),
			ConversationID: in.ConversationID,
			Role:           model.RoleUser,
			Content:        "",
			MessageType:    "file",
			FileName:       att.Name,
			FileSnippet:    truncate(att.Content, fileSnippetMaxLen),
		}
		if err := s.messages.Insert(ctx, marker); err != nil {
			log.Warnf("failed to persist file marker for %s: %v", att.Name, err)
			continue
		}
		s.mirror.AppendMessage(in.ConversationID, *marker)
	}

	history, err := s.messages.History(ctx, in.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	assembled := s.assembler.Assemble(ctx, AssembleInput{
		History:       toLLMMessages(history),
		Agent:         agent,
		Attachments:   in.Attachments,
		WithWebSearch: in.WithWebSearch,
		Query:         in.Content,
	})

	result := s.dispatcher.Dispatch(ctx, modality, assembled.Messages)

	out := &SendOutcome{ConversationID: conv.ID, UserMessage: userMsg}
	assistant, err := s.reconciler.Persist(ctx, PersistInput{
		ConversationID: in.ConversationID,
		Result:         result,
		MessageType:    modality.MessageType(),
		Citations:      assembled.Citations,
		AgentID:        agentID,
	})
	if err != nil {
		// 落库失败时回复只进镜像，刷新页面后丢失
		log.Errorf("failed to persist assistant message: %v", err)
		assistant = &model.Message{
			UID:            uuid.NewString(),
			ConversationID: in.ConversationID,
			Role:           model.RoleAssistant,
			Content:        CollapseEcho(result.Text),
			MessageType:    modality.MessageType(),
			ModelType:      result.Model,
			AgentID:        agentID,
			Images:         mediaList(result.Images),
			Videos:         mediaList(result.Videos),
		}
		out.Unpersisted = true
	}
	out.AssistantMessage = assistant
	s.mirror.AppendMessage(in.ConversationID, *assistant)

	s.refreshConversationMeta(ctx, conv, in.Content)
	s.produceIndexTasks(conv, userMsg, assistant, out.Unpersisted)

	return out, nil
}

// resolveConversation 定位发送目标。未指定对话时新建一个并设为活动对话。
func (s *chatService) resolveConversation(ctx context.Context, in SendInput) (*model.Conversation, error) {
	if in.ConversationID == 0 {
		conv := &model.Conversation{
			UID:    uuid.NewString(),
			UserID: in.UserID,
			Title:  model.DefaultTitle,
		}
		if err := s.conversations.Create(ctx, conv); err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		s.mirror.Insert(*conv)
		if err := s.sessions.SetActiveConversation(ctx, in.UserID, conv.ID); err != nil {
			log.Warnf("failed to remember active conversation %d: %v", conv.ID, err)
		}
		return conv, nil
	}

	conv, err := s.conversations.FindByID(ctx, in.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation %d not found", in.ConversationID)
	}
	if conv.UserID != in.UserID {
		return nil, fmt.Errorf("conversation %d does not belong to user %d", in.ConversationID, in.UserID)
	}
	return conv, nil
}

// selectedAgent 解析用户当前选中的人格。会话层或加载失败时按未选中处理。
func (s *chatService) selectedAgent(ctx context.Context, userID uint) (*model.Agent, *uint) {
	id, ok, err := s.sessions.SelectedAgent(ctx, userID)
	if err != nil {
		log.Warnf("failed to read selected agent for user %d: %v", userID, err)
		return nil, nil
	}
	if !ok {
		return nil, nil
	}
	agent, err := s.agents.FindByID(ctx, id)
	if err != nil || agent == nil {
		log.Warnf("selected agent %d not loadable for user %d: %v", id, userID, err)
		return nil, nil
	}
	return agent, &agent.ID
}

// refreshConversationMeta 刷新 updated_at，并在占位标题时从首条消息派生标题。
func (s *chatService) refreshConversationMeta(ctx context.Context, conv *model.Conversation, content string) {
	if err := s.conversations.Touch(ctx, conv.ID); err != nil {
		log.Warnf("failed to touch conversation %d: %v", conv.ID, err)
	}
	if conv.Title != model.DefaultTitle {
		return
	}
	title := strings.TrimSpace(content)
	if title == "" {
		return
	}
	if utf8.RuneCountInString(title) > titleMaxLen {
		title = truncate(title, titleMaxLen) + "..."
	}
	if err := s.conversations.UpdateTitle(ctx, conv.ID, title); err != nil {
		log.Warnf("failed to update title for conversation %d: %v", conv.ID, err)
		return
	}
	s.mirror.SetTitle(conv.ID, title)
}

// produceIndexTasks 把本轮消息投递到索引管线。投递失败只记日志。
func (s *chatService) produceIndexTasks(conv *model.Conversation, userMsg, assistant *model.Message, unpersisted bool) {
	if !s.indexEnabled {
		return
	}
	msgs := []*model.Message{userMsg}
	if !unpersisted {
		msgs = append(msgs, assistant)
	}
	for _, m := range msgs {
		task := tasks.MessageIndexTask{
			MessageUID:        m.UID,
			ConversationID:    conv.ID,
			ConversationTitle: conv.Title,
			UserID:            conv.UserID,
			Role:              m.Role,
			Content:           m.Content,
			CreatedAt:         m.CreatedAt,
		}
		if err := kafka.ProduceIndexTask(task); err != nil {
			log.Warnf("failed to produce index task for message %s: %v", m.UID, err)
		}
	}
}

func toLLMMessages(msgs []model.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		// 文件标记行不进入模型上下文，附件内容走独立的预算块
		if m.MessageType == "file" {
			continue
		}
		role := m.Role
		if role != model.RoleUser && role != model.RoleAssistant {
			continue
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}

// truncate 按字符数截断，不会截开多字节字符。
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
