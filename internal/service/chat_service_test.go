package service

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"astra-chat-go/internal/config"
	"astra-chat-go/internal/model"
	"astra-chat-go/internal/store"
	"astra-chat-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm.io/datatypes"
)

// fakeConversationRepo 是 ConversationRepository 的内存实现。
type fakeConversationRepo struct {
	convs   map[uint]*model.Conversation
	touched []uint
	nextID  uint
}

func newFakeConversationRepo(convs ...*model.Conversation) *fakeConversationRepo {
	m := make(map[uint]*model.Conversation)
	next := uint(1)
	for _, c := range convs {
		m[c.ID] = c
		if c.ID >= next {
			next = c.ID + 1
		}
	}
	return &fakeConversationRepo{convs: m, nextID: next}
}

func (f *fakeConversationRepo) Create(ctx context.Context, conv *model.Conversation) error {
	if conv.ID == 0 {
		conv.ID = f.nextID
		f.nextID++
	}
	f.convs[conv.ID] = conv
	return nil
}

func (f *fakeConversationRepo) FindByID(ctx context.Context, id uint) (*model.Conversation, error) {
	c, ok := f.convs[id]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (f *fakeConversationRepo) FindAllWithMessages(ctx context.Context, userID uint) ([]model.Conversation, error) {
	return nil, nil
}

func (f *fakeConversationRepo) UpdateTitle(ctx context.Context, id uint, title string) error {
	if c, ok := f.convs[id]; ok {
		c.Title = title
	}
	return nil
}

func (f *fakeConversationRepo) UpdateProject(ctx context.Context, id uint, projectID *uint) error {
	return nil
}

func (f *fakeConversationRepo) ClearProject(ctx context.Context, projectID uint) (int64, error) {
	return 0, nil
}

func (f *fakeConversationRepo) Touch(ctx context.Context, id uint) error {
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeConversationRepo) Delete(ctx context.Context, id uint) error {
	delete(f.convs, id)
	return nil
}

// fakeAgentRepo 按 ID 返回预置人格。
type fakeAgentRepo struct {
	agents map[uint]*model.Agent
}

func (f *fakeAgentRepo) FindByID(ctx context.Context, id uint) (*model.Agent, error) {
	return f.agents[id], nil
}

func (f *fakeAgentRepo) FindPublished(ctx context.Context) ([]model.Agent, error) {
	return nil, nil
}

// fakeSessionRepo 是 SessionRepository 的内存实现。
type fakeSessionRepo struct {
	selectedAgent *uint
	activeConv    *uint
}

func (f *fakeSessionRepo) SelectedAgent(ctx context.Context, userID uint) (uint, bool, error) {
	if f.selectedAgent == nil {
		return 0, false, nil
	}
	return *f.selectedAgent, true, nil
}

func (f *fakeSessionRepo) SetSelectedAgent(ctx context.Context, userID uint, agentID *uint) error {
	f.selectedAgent = agentID
	return nil
}

func (f *fakeSessionRepo) ActiveConversation(ctx context.Context, userID uint) (uint, bool, error) {
	if f.activeConv == nil {
		return 0, false, nil
	}
	return *f.activeConv, true, nil
}

func (f *fakeSessionRepo) SetActiveConversation(ctx context.Context, userID uint, convID uint) error {
	f.activeConv = &convID
	return nil
}

func (f *fakeSessionRepo) ClearActiveConversation(ctx context.Context, userID uint) error {
	f.activeConv = nil
	return nil
}

// fakeDispatcher 记录收到的消息序列并返回固定结果。
type fakeDispatcher struct {
	result   DispatchResult
	received []llm.Message
	modality Modality
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, modality Modality, messages []llm.Message) DispatchResult {
	f.modality = modality
	f.received = messages
	return f.result
}

func newTestChatService(
	convRepo *fakeConversationRepo,
	msgRepo *fakeMessageRepo,
	agents *fakeAgentRepo,
	sessions *fakeSessionRepo,
	dispatcher *fakeDispatcher,
	mirror *store.Mirror,
) ChatService {
	assembler := NewContextService(&fakeSearchClient{}, &config.WebSearchConfig{})
	reconciler := NewReconciler(msgRepo)
	return NewChatService(convRepo, msgRepo, agents, sessions, assembler, dispatcher, reconciler, mirror, false)
}

func TestSendMessage_PersistsUserThenAssistant(t *testing.T) {
	convRepo := newFakeConversationRepo(&model.Conversation{ID: 1, UserID: 9, Title: "Existing"})
	msgRepo := newFakeMessageRepo()
	mirror := store.NewMirror()
	mirror.Replace([]model.Conversation{{ID: 1, Title: "Existing"}})
	dispatcher := &fakeDispatcher{result: DispatchResult{Text: "the answer", Model: "chat-a"}}

	svc := newTestChatService(convRepo, msgRepo, &fakeAgentRepo{}, &fakeSessionRepo{}, dispatcher, mirror)

	out, err := svc.SendMessage(context.Background(), SendInput{
		UserID:         9,
		ConversationID: 1,
		Content:        "a question",
	})
	require.NoError(t, err)
	assert.False(t, out.Unpersisted)

	require.Len(t, msgRepo.msgs, 2)
	assert.Equal(t, model.RoleUser, msgRepo.msgs[0].Role)
	assert.Equal(t, "a question", msgRepo.msgs[0].Content)
	assert.Equal(t, model.RoleAssistant, msgRepo.msgs[1].Role)
	assert.Equal(t, "the answer", msgRepo.msgs[1].Content)

	// 镜像同步拿到两条消息
	snapshot := mirror.Get(1)
	require.NotNil(t, snapshot)
	assert.Len(t, snapshot.Messages, 2)

	// 对话元数据被刷新
	assert.Equal(t, []uint{uint(1)}, convRepo.touched)
}

func TestSendMessage_RejectsForeignConversation(t *testing.T) {
	convRepo := newFakeConversationRepo(&model.Conversation{ID: 1, UserID: 9})
	svc := newTestChatService(convRepo, newFakeMessageRepo(), &fakeAgentRepo{}, &fakeSessionRepo{},
		&fakeDispatcher{}, store.NewMirror())

	_, err := svc.SendMessage(context.Background(), SendInput{
		UserID:         8,
		ConversationID: 1,
		Content:        "q",
	})
	assert.Error(t, err)
}

func TestSendMessage_UserInsertFailureAborts(t *testing.T) {
	convRepo := newFakeConversationRepo(&model.Conversation{ID: 1, UserID: 9})
	msgRepo := newFakeMessageRepo()
	msgRepo.insertErr = assert.AnError
	dispatcher := &fakeDispatcher{result: DispatchResult{Text: "never"}}

	svc := newTestChatService(convRepo, msgRepo, &fakeAgentRepo{}, &fakeSessionRepo{}, dispatcher, store.NewMirror())

	_, err := svc.SendMessage(context.Background(), SendInput{
		UserID:         9,
		ConversationID: 1,
		Content:        "q",
	})
	require.Error(t, err)
	// 用户消息落库失败时不触发派发
	assert.Nil(t, dispatcher.received)
	assert.Empty(t, msgRepo.msgs)
}

func TestSendMessage_FileMarkersPersisted(t *testing.T) {
	convRepo := newFakeConversationRepo(&model.Conversation{ID: 1, UserID: 9, Title: "T"})
	msgRepo := newFakeMessageRepo()
	mirror := store.NewMirror()
	mirror.Replace([]model.Conversation{{ID: 1}})
	dispatcher := &fakeDispatcher{result: DispatchResult{Text: "ok"}}

	svc := newTestChatService(convRepo, msgRepo, &fakeAgentRepo{}, &fakeSessionRepo{}, dispatcher, mirror)

	_, err := svc.SendMessage(context.Background(), SendInput{
		UserID:         9,
		ConversationID: 1,
		Content:        "see files",
		Attachments: []Attachment{
			{Name: "a.go", Content: "package a"},
			{Name: "b.go", Content: "package b"},
		},
	})
	require.NoError(t, err)

	// 用户消息 + 两条文件标记 + 助手回复
	require.Len(t, msgRepo.msgs, 4)
	assert.Equal(t, "file", msgRepo.msgs[1].MessageType)
	assert.Empty(t, msgRepo.msgs[1].Content)
	assert.Equal(t, "a.go", msgRepo.msgs[1].FileName)
	assert.Equal(t, "package a", msgRepo.msgs[1].FileSnippet)
	assert.Equal(t, "file", msgRepo.msgs[2].MessageType)

	// 文件标记不进入模型上下文，附件走独立的预算块
	for _, m := range dispatcher.received {
		if m.Role == model.RoleSystem {
			continue
		}
		assert.NotEmpty(t, m.Content)
	}
}

func TestSendMessage_CreatesConversationOnDemand(t *testing.T) {
	convRepo := newFakeConversationRepo()
	msgRepo := newFakeMessageRepo()
	sessions := &fakeSessionRepo{}
	mirror := store.NewMirror()
	dispatcher := &fakeDispatcher{result: DispatchResult{Text: "ok"}}

	svc := newTestChatService(convRepo, msgRepo, &fakeAgentRepo{}, sessions, dispatcher, mirror)

	out, err := svc.SendMessage(context.Background(), SendInput{
		UserID:  9,
		Content: "fresh start",
	})
	require.NoError(t, err)
	require.NotZero(t, out.ConversationID)

	created := convRepo.convs[out.ConversationID]
	require.NotNil(t, created)
	// 首条消息立刻派生标题
	assert.Equal(t, "fresh start", created.Title)

	active, ok := mirror.Active()
	require.True(t, ok)
	assert.Equal(t, out.ConversationID, active)
	require.NotNil(t, sessions.activeConv)
	assert.Equal(t, out.ConversationID, *sessions.activeConv)
}

func TestSendMessage_TitleDerivedFromFirstMessage(t *testing.T) {
	convRepo := newFakeConversationRepo(&model.Conversation{ID: 1, UserID: 9, Title: model.DefaultTitle})
	msgRepo := newFakeMessageRepo()
	mirror := store.NewMirror()
	mirror.Replace([]model.Conversation{{ID: 1, Title: model.DefaultTitle}})
	dispatcher := &fakeDispatcher{result: DispatchResult{Text: "ok"}}

	svc := newTestChatService(convRepo, msgRepo, &fakeAgentRepo{}, &fakeSessionRepo{}, dispatcher, mirror)

	long := "This opening question is definitely longer than fifty characters in total."
	_, err := svc.SendMessage(context.Background(), SendInput{
		UserID:         9,
		ConversationID: 1,
		Content:        long,
	})
	require.NoError(t, err)

	want := long[:50] + "..."
	assert.Equal(t, want, convRepo.convs[1].Title)
	assert.Equal(t, want, mirror.Get(1).Title)
}

func TestSendMessage_TitleTruncatesOnRuneBoundary(t *testing.T) {
	convRepo := newFakeConversationRepo(&model.Conversation{ID: 1, UserID: 9, Title: model.DefaultTitle})
	mirror := store.NewMirror()
	mirror.Replace([]model.Conversation{{ID: 1, Title: model.DefaultTitle}})
	dispatcher := &fakeDispatcher{result: DispatchResult{Text: "ok"}}

	svc := newTestChatService(convRepo, newFakeMessageRepo(), &fakeAgentRepo{}, &fakeSessionRepo{}, dispatcher, mirror)

	long := strings.Repeat("深", 60)
	_, err := svc.SendMessage(context.Background(), SendInput{
		UserID:         9,
		ConversationID: 1,
		Content:        long,
	})
	require.NoError(t, err)

	// 按字符截断，不能截出半个多字节字符
	title := convRepo.convs[1].Title
	assert.Equal(t, strings.Repeat("深", 50)+"...", title)
	assert.True(t, utf8.ValidString(title))
}

func TestSendMessage_ExistingTitleUntouched(t *testing.T) {
	convRepo := newFakeConversationRepo(&model.Conversation{ID: 1, UserID: 9, Title: "Kept"})
	dispatcher := &fakeDispatcher{result: DispatchResult{Text: "ok"}}
	mirror := store.NewMirror()
	mirror.Replace([]model.Conversation{{ID: 1, Title: "Kept"}})

	svc := newTestChatService(convRepo, newFakeMessageRepo(), &fakeAgentRepo{}, &fakeSessionRepo{}, dispatcher, mirror)

	_, err := svc.SendMessage(context.Background(), SendInput{
		UserID:         9,
		ConversationID: 1,
		Content:        "another question",
	})
	require.NoError(t, err)
	assert.Equal(t, "Kept", convRepo.convs[1].Title)
}

func TestSendMessage_SelectedAgentShapesContext(t *testing.T) {
	agentID := uint(5)
	agents := &fakeAgentRepo{agents: map[uint]*model.Agent{
		5: {
			ID:          5,
			Name:        "Reviewer",
			IsPublished: true,
			Persona:     datatypes.NewJSONType(model.AgentPersona{SystemPrompt: "You review code."}),
		},
	}}
	sessions := &fakeSessionRepo{selectedAgent: &agentID}
	convRepo := newFakeConversationRepo(&model.Conversation{ID: 1, UserID: 9, Title: "T"})
	msgRepo := newFakeMessageRepo()
	dispatcher := &fakeDispatcher{result: DispatchResult{Text: "lgtm"}}
	mirror := store.NewMirror()
	mirror.Replace([]model.Conversation{{ID: 1}})

	svc := newTestChatService(convRepo, msgRepo, agents, sessions, dispatcher, mirror)

	out, err := svc.SendMessage(context.Background(), SendInput{
		UserID:         9,
		ConversationID: 1,
		Content:        "review this",
	})
	require.NoError(t, err)

	// 人设 system 排在上下文第一位
	require.NotEmpty(t, dispatcher.received)
	assert.Equal(t, model.RoleSystem, dispatcher.received[0].Role)
	assert.Equal(t, "You review code.", dispatcher.received[0].Content)

	// 两端消息都带上 agent 引用
	require.NotNil(t, out.UserMessage.AgentID)
	assert.Equal(t, agentID, *out.UserMessage.AgentID)
	require.NotNil(t, out.AssistantMessage.AgentID)
	assert.Equal(t, agentID, *out.AssistantMessage.AgentID)
}

func TestSendMessage_AssistantPersistFailureKeepsReplyInMirror(t *testing.T) {
	convRepo := newFakeConversationRepo(&model.Conversation{ID: 1, UserID: 9, Title: "T"})
	msgRepo := newFakeMessageRepo()
	dispatcher := &fakeDispatcher{result: DispatchResult{Text: "volatile answer", Model: "chat-a"}}
	mirror := store.NewMirror()
	mirror.Replace([]model.Conversation{{ID: 1}})

	// 用户消息落库成功后让后续写入失败
	inserted := 0
	wrapped := &failAfterNRepo{inner: msgRepo, failAfter: 1, count: &inserted}

	reconciler := NewReconciler(wrapped)
	assembler := NewContextService(&fakeSearchClient{}, &config.WebSearchConfig{})
	svc := NewChatService(convRepo, wrapped, &fakeAgentRepo{}, &fakeSessionRepo{}, assembler, dispatcher, reconciler, mirror, false)

	out, err := svc.SendMessage(context.Background(), SendInput{
		UserID:         9,
		ConversationID: 1,
		Content:        "q",
	})
	require.NoError(t, err)
	assert.True(t, out.Unpersisted)
	assert.Equal(t, "volatile answer", out.AssistantMessage.Content)

	// 存储里只有用户消息，镜像里有两条
	assert.Len(t, msgRepo.msgs, 1)
	assert.Len(t, mirror.Get(1).Messages, 2)
}

// failAfterNRepo 在前 N 次 Insert 成功后开始失败。
type failAfterNRepo struct {
	inner     *fakeMessageRepo
	failAfter int
	count     *int
}

func (f *failAfterNRepo) Insert(ctx context.Context, msg *model.Message) error {
	if *f.count >= f.failAfter {
		return assert.AnError
	}
	*f.count++
	return f.inner.Insert(ctx, msg)
}

func (f *failAfterNRepo) InsertBatch(ctx context.Context, msgs []*model.Message) error {
	return f.inner.InsertBatch(ctx, msgs)
}

func (f *failAfterNRepo) History(ctx context.Context, conversationID uint) ([]model.Message, error) {
	return f.inner.History(ctx, conversationID)
}

func (f *failAfterNRepo) Last(ctx context.Context, conversationID uint) (*model.Message, error) {
	return f.inner.Last(ctx, conversationID)
}

func (f *failAfterNRepo) AttachCitations(ctx context.Context, id uint, citations []model.Citation) (*model.Message, error) {
	return f.inner.AttachCitations(ctx, id, citations)
}

func (f *failAfterNRepo) SearchLike(ctx context.Context, userID uint, query string, limit int) ([]model.MessageSearchRow, error) {
	return f.inner.SearchLike(ctx, userID, query, limit)
}
