package store

import (
	"testing"

	"astra-chat-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conv(id uint, title string) model.Conversation {
	return model.Conversation{ID: id, Title: title}
}

func TestMirror_ReplaceActivatesFirst(t *testing.T) {
	m := NewMirror()
	m.Replace([]model.Conversation{conv(3, "c"), conv(1, "a"), conv(2, "b")})

	active, ok := m.Active()
	require.True(t, ok)
	assert.Equal(t, uint(3), active)

	convs := m.Conversations()
	require.Len(t, convs, 3)
	assert.Equal(t, uint(3), convs[0].ID)
}

func TestMirror_ReplaceKeepsExistingActive(t *testing.T) {
	m := NewMirror()
	m.Replace([]model.Conversation{conv(1, "a"), conv(2, "b")})
	m.SetActive(2)

	m.Replace([]model.Conversation{conv(2, "b"), conv(1, "a")})
	active, ok := m.Active()
	require.True(t, ok)
	assert.Equal(t, uint(2), active)
}

func TestMirror_SetActiveUnknownIsNoop(t *testing.T) {
	m := NewMirror()
	m.Replace([]model.Conversation{conv(1, "a")})

	m.SetActive(99)
	active, _ := m.Active()
	assert.Equal(t, uint(1), active)
}

func TestMirror_InsertPrependsAndActivates(t *testing.T) {
	m := NewMirror()
	m.Replace([]model.Conversation{conv(1, "a")})

	m.Insert(conv(5, "new"))

	convs := m.Conversations()
	require.Len(t, convs, 2)
	assert.Equal(t, uint(5), convs[0].ID)

	active, _ := m.Active()
	assert.Equal(t, uint(5), active)
}

func TestMirror_RemoveActiveFallsBack(t *testing.T) {
	m := NewMirror()
	m.Replace([]model.Conversation{conv(1, "a"), conv(2, "b")})
	m.SetActive(1)

	next := m.Remove(1)
	assert.Equal(t, uint(2), next)

	next = m.Remove(2)
	assert.Equal(t, uint(0), next)
	_, ok := m.Active()
	assert.False(t, ok)
}

func TestMirror_RemoveInactiveKeepsActive(t *testing.T) {
	m := NewMirror()
	m.Replace([]model.Conversation{conv(1, "a"), conv(2, "b")})
	m.SetActive(1)

	next := m.Remove(2)
	assert.Equal(t, uint(1), next)
}

func TestMirror_AppendMessageSnapshotIsolation(t *testing.T) {
	m := NewMirror()
	m.Replace([]model.Conversation{conv(1, "a")})

	before := m.Get(1)
	m.AppendMessage(1, model.Message{ID: 10, Content: "hello"})

	// 旧快照不受后续追加影响
	assert.Empty(t, before.Messages)

	after := m.Get(1)
	require.Len(t, after.Messages, 1)
	assert.Equal(t, "hello", after.Messages[0].Content)
}

func TestMirror_AppendToUnknownConversationIsNoop(t *testing.T) {
	m := NewMirror()
	m.AppendMessage(42, model.Message{ID: 1})
	assert.Nil(t, m.Get(42))
}

func TestMirror_ClearProject(t *testing.T) {
	m := NewMirror()
	p1, p2 := uint(1), uint(2)
	a, b, c := conv(1, "a"), conv(2, "b"), conv(3, "c")
	a.ProjectID = &p1
	b.ProjectID = &p1
	c.ProjectID = &p2
	m.Replace([]model.Conversation{a, b, c})

	cleared := m.ClearProject(p1)
	assert.Equal(t, 2, cleared)

	// 对话还在，只是失去项目归属
	require.Len(t, m.Conversations(), 3)
	assert.Nil(t, m.Get(1).ProjectID)
	assert.Nil(t, m.Get(2).ProjectID)
	require.NotNil(t, m.Get(3).ProjectID)
	assert.Equal(t, p2, *m.Get(3).ProjectID)
}

func TestMirror_SubscribeReceivesEvents(t *testing.T) {
	m := NewMirror()
	events, cancel := m.Subscribe()
	defer cancel()

	m.Insert(conv(1, "a"))

	ev := <-events
	assert.Equal(t, EventCreated, ev.Type)
	assert.Equal(t, uint(1), ev.ConversationID)

	m.AppendMessage(1, model.Message{ID: 7, Content: "hi"})
	ev = <-events
	assert.Equal(t, EventMessage, ev.Type)
	require.NotNil(t, ev.Message)
	assert.Equal(t, "hi", ev.Message.Content)
}

func TestMirror_CancelClosesChannel(t *testing.T) {
	m := NewMirror()
	events, cancel := m.Subscribe()
	cancel()

	_, open := <-events
	assert.False(t, open)

	// 重复取消是安全的
	cancel()
}
