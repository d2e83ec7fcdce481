package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"astra-chat-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "a\nb", NormalizeText("a\r\n\r\nb"))
	assert.Equal(t, "a b", NormalizeText("a \t b"))
	assert.Equal(t, "hello", NormalizeText("  hello  \n"))
	assert.Equal(t, "", NormalizeText("   \n\t  "))
}

func TestCollapseEcho_ExactRepeats(t *testing.T) {
	base := "The answer is 42."

	for factor := 2; factor <= 4; factor++ {
		doubled := strings.Repeat(base, factor)
		assert.Equal(t, base, CollapseEcho(doubled), "factor %d", factor)
	}
}

func TestCollapseEcho_BlankLineHalves(t *testing.T) {
	text := "First paragraph of the reply.\n\nFirst paragraph of the reply."
	assert.Equal(t, "First paragraph of the reply.", CollapseEcho(text))
}

func TestCollapseEcho_BlankLineHalvesWhitespaceVariant(t *testing.T) {
	// 行内空白不同的两半也算同一段回声
	text := "The answer  is 42.\n\nThe answer is 42."
	assert.Equal(t, "The answer  is 42.", CollapseEcho(text))
}

func TestCollapseEcho_NoFalsePositive(t *testing.T) {
	// 前后两半不同，不能折叠
	text := "First thought.\n\nSecond thought."
	assert.Equal(t, text, CollapseEcho(text))

	// 单段文本原样返回
	assert.Equal(t, "plain answer", CollapseEcho("  plain answer  "))
}

func TestCollapseEcho_Idempotent(t *testing.T) {
	inputs := []string{
		strings.Repeat("echo echo.", 2),
		"para\n\npara",
		"already clean",
	}
	for _, in := range inputs {
		once := CollapseEcho(in)
		assert.Equal(t, once, CollapseEcho(once))
	}
}

// fakeMessageRepo 是 MessageRepository 的内存实现，按插入顺序保存消息。
type fakeMessageRepo struct {
	msgs      []*model.Message
	nextID    uint
	insertErr error
	attachErr error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{nextID: 1}
}

func (f *fakeMessageRepo) Insert(ctx context.Context, msg *model.Message) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	msg.ID = f.nextID
	f.nextID++
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeMessageRepo) InsertBatch(ctx context.Context, msgs []*model.Message) error {
	for _, m := range msgs {
		if err := f.Insert(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeMessageRepo) History(ctx context.Context, conversationID uint) ([]model.Message, error) {
	var out []model.Message
	for _, m := range f.msgs {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) Last(ctx context.Context, conversationID uint) (*model.Message, error) {
	for i := len(f.msgs) - 1; i >= 0; i-- {
		if f.msgs[i].ConversationID == conversationID {
			copied := *f.msgs[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeMessageRepo) AttachCitations(ctx context.Context, id uint, citations []model.Citation) (*model.Message, error) {
	if f.attachErr != nil {
		return nil, f.attachErr
	}
	for _, m := range f.msgs {
		if m.ID == id {
			m.Attachments = citations
			copied := *m
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeMessageRepo) SearchLike(ctx context.Context, userID uint, query string, limit int) ([]model.MessageSearchRow, error) {
	return nil, nil
}

func TestReconciler_PersistInsertsCollapsedText(t *testing.T) {
	repo := newFakeMessageRepo()
	r := NewReconciler(repo)

	msg, err := r.Persist(context.Background(), PersistInput{
		ConversationID: 7,
		Result:         DispatchResult{Text: "hi there.hi there.", Model: "m1"},
		MessageType:    "text",
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there.", msg.Content)
	assert.Equal(t, model.RoleAssistant, msg.Role)
	assert.Equal(t, "m1", msg.ModelType)
	assert.Len(t, repo.msgs, 1)
}

func TestReconciler_PersistReusesLastAssistantRow(t *testing.T) {
	repo := newFakeMessageRepo()
	existing := &model.Message{
		ConversationID: 7,
		Role:           model.RoleAssistant,
		Content:        "same answer",
	}
	require.NoError(t, repo.Insert(context.Background(), existing))

	r := NewReconciler(repo)
	msg, err := r.Persist(context.Background(), PersistInput{
		ConversationID: 7,
		Result:         DispatchResult{Text: "same answer"},
		MessageType:    "text",
	})
	require.NoError(t, err)

	// 不新增行，复用已有助手消息
	assert.Len(t, repo.msgs, 1)
	assert.Equal(t, existing.ID, msg.ID)
}

func TestReconciler_PersistReusesWhitespaceVariantRow(t *testing.T) {
	repo := newFakeMessageRepo()
	existing := &model.Message{
		ConversationID: 7,
		Role:           model.RoleAssistant,
		Content:        "hello  world",
	}
	require.NoError(t, repo.Insert(context.Background(), existing))

	r := NewReconciler(repo)
	msg, err := r.Persist(context.Background(), PersistInput{
		ConversationID: 7,
		Result:         DispatchResult{Text: "hello world"},
		MessageType:    "text",
	})
	require.NoError(t, err)

	// 归一化后同内容，仍然复用
	assert.Len(t, repo.msgs, 1)
	assert.Equal(t, existing.ID, msg.ID)
}

func TestReconciler_PersistMediaNeverNull(t *testing.T) {
	repo := newFakeMessageRepo()
	r := NewReconciler(repo)

	msg, err := r.Persist(context.Background(), PersistInput{
		ConversationID: 7,
		Result:         DispatchResult{Text: "text only", Model: "m1"},
		MessageType:    "text",
	})
	require.NoError(t, err)

	// 无媒体时落库为空数组而不是 null
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"images":[]`)
	assert.Contains(t, string(raw), `"videos":[]`)
}

func TestReconciler_PersistAttachesCitations(t *testing.T) {
	repo := newFakeMessageRepo()
	r := NewReconciler(repo)

	citations := []model.Citation{{ID: 1, Title: "Source", URL: "https://example.com"}}
	msg, err := r.Persist(context.Background(), PersistInput{
		ConversationID: 3,
		Result:         DispatchResult{Text: "sourced answer"},
		MessageType:    "text",
		Citations:      citations,
	})
	require.NoError(t, err)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "Source", msg.Attachments[0].Title)
}

func TestReconciler_CitationFailureDegradesGracefully(t *testing.T) {
	repo := newFakeMessageRepo()
	repo.attachErr = assert.AnError
	r := NewReconciler(repo)

	msg, err := r.Persist(context.Background(), PersistInput{
		ConversationID: 3,
		Result:         DispatchResult{Text: "answer"},
		MessageType:    "text",
		Citations:      []model.Citation{{ID: 1, Title: "Source"}},
	})
	// 补挂失败不报错，消息本体已落库
	require.NoError(t, err)
	assert.Equal(t, "answer", msg.Content)
	assert.Empty(t, msg.Attachments)
	assert.Len(t, repo.msgs, 1)
}
