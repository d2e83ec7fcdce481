// Package store 维护持久化对话的内存镜像。
// 镜像只通过本包的操作更新，每次更新都整体替换受影响对话的快照，
// 订阅者通过变更事件通道获知更新。
package store

import (
	"sync"

	"astra-chat-go/internal/model"
)

// EventType 标识一次镜像变更的类型。
type EventType string

const (
	EventReloaded       EventType = "reloaded"
	EventCreated        EventType = "created"
	EventDeleted        EventType = "deleted"
	EventMessage        EventType = "message"
	EventProjectChanged EventType = "project_changed"
)

// Event 是推送给订阅者的一次镜像变更。
type Event struct {
	Type           EventType      `json:"type"`
	ConversationID uint           `json:"conversationId,omitempty"`
	Message        *model.Message `json:"message,omitempty"`
}

// Mirror 是对话的内存镜像。所有修改持有写锁，读取持有读锁；
// 对话快照在修改时整体替换，读取方拿到的切片不会被后续修改。
type Mirror struct {
	mu       sync.RWMutex
	order    []uint // 展示顺序（最近更新在前）
	byID     map[uint]*model.Conversation
	activeID uint // 0 表示无活动对话
	subs     map[chan Event]struct{}
}

// NewMirror 创建一个空镜像。
func NewMirror() *Mirror {
	return &Mirror{
		byID: make(map[uint]*model.Conversation),
		subs: make(map[chan Event]struct{}),
	}
}

// Replace 用一次全量加载的结果替换整个镜像。
// 若此前没有活动对话且加载结果非空，则第一个对话成为活动对话。
func (m *Mirror) Replace(convs []model.Conversation) {
	m.mu.Lock()
	m.order = make([]uint, 0, len(convs))
	m.byID = make(map[uint]*model.Conversation, len(convs))
	for i := range convs {
		c := convs[i]
		m.order = append(m.order, c.ID)
		m.byID[c.ID] = &c
	}
	if _, ok := m.byID[m.activeID]; !ok {
		m.activeID = 0
	}
	if m.activeID == 0 && len(m.order) > 0 {
		m.activeID = m.order[0]
	}
	m.mu.Unlock()

	m.publish(Event{Type: EventReloaded})
}

// Conversations 按展示顺序返回全部对话快照的副本。
func (m *Mirror) Conversations() []model.Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Conversation, 0, len(m.order))
	for _, id := range m.order {
		if c, ok := m.byID[id]; ok {
			out = append(out, *c)
		}
	}
	return out
}

// Get 返回指定对话的快照，不存在时返回 nil。
func (m *Mirror) Get(id uint) *model.Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.byID[id]
	if !ok {
		return nil
	}
	snapshot := *c
	return &snapshot
}

// Active 返回当前活动对话的 ID；无活动对话时 ok 为 false。
func (m *Mirror) Active() (uint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeID, m.activeID != 0
}

// SetActive 显式选中一个对话。选中不存在的对话是 no-op。
func (m *Mirror) SetActive(id uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; ok {
		m.activeID = id
	}
}

// Insert 把新建的对话放到镜像最前面并设为活动对话。
func (m *Mirror) Insert(conv model.Conversation) {
	m.mu.Lock()
	m.byID[conv.ID] = &conv
	m.order = append([]uint{conv.ID}, m.order...)
	m.activeID = conv.ID
	m.mu.Unlock()

	m.publish(Event{Type: EventCreated, ConversationID: conv.ID})
}

// Remove 从镜像中删除对话。若删除的是活动对话，
// 活动对话回退到新的第一个对话，或回退到“无活动对话”。
// 返回新的活动对话 ID（0 表示无）。
func (m *Mirror) Remove(id uint) uint {
	m.mu.Lock()
	delete(m.byID, id)
	order := make([]uint, 0, len(m.order))
	for _, cid := range m.order {
		if cid != id {
			order = append(order, cid)
		}
	}
	m.order = order
	if m.activeID == id {
		if len(order) > 0 {
			m.activeID = order[0]
		} else {
			m.activeID = 0
		}
	}
	active := m.activeID
	m.mu.Unlock()

	m.publish(Event{Type: EventDeleted, ConversationID: id})
	return active
}

// AppendMessage 向对话追加一条消息。
// 快照整体替换：复制消息切片后追加，再替换对话对象。
func (m *Mirror) AppendMessage(conversationID uint, msg model.Message) {
	m.mu.Lock()
	c, ok := m.byID[conversationID]
	if !ok {
		m.mu.Unlock()
		return
	}
	next := *c
	next.Messages = make([]model.Message, 0, len(c.Messages)+1)
	next.Messages = append(next.Messages, c.Messages...)
	next.Messages = append(next.Messages, msg)
	m.byID[conversationID] = &next
	m.mu.Unlock()

	m.publish(Event{Type: EventMessage, ConversationID: conversationID, Message: &msg})
}

// SetTitle 更新对话快照的标题。
func (m *Mirror) SetTitle(conversationID uint, title string) {
	m.mu.Lock()
	if c, ok := m.byID[conversationID]; ok {
		next := *c
		next.Title = title
		m.byID[conversationID] = &next
	}
	m.mu.Unlock()
}

// SetProject 更新对话快照的项目归属。
func (m *Mirror) SetProject(conversationID uint, projectID *uint) {
	m.mu.Lock()
	if c, ok := m.byID[conversationID]; ok {
		next := *c
		next.ProjectID = projectID
		m.byID[conversationID] = &next
	}
	m.mu.Unlock()

	m.publish(Event{Type: EventProjectChanged, ConversationID: conversationID})
}

// ClearProject 清空归属于某项目的所有对话的项目关联，返回受影响的对话数。
// 项目删除绝不级联删除对话。
func (m *Mirror) ClearProject(projectID uint) int {
	m.mu.Lock()
	cleared := 0
	for id, c := range m.byID {
		if c.ProjectID != nil && *c.ProjectID == projectID {
			next := *c
			next.ProjectID = nil
			m.byID[id] = &next
			cleared++
		}
	}
	m.mu.Unlock()

	if cleared > 0 {
		m.publish(Event{Type: EventProjectChanged})
	}
	return cleared
}

// Subscribe 注册一个变更事件订阅者。返回的 cancel 用于退订。
// 事件投递是尽力而为：订阅者缓冲已满时丢弃事件而不是阻塞镜像更新。
func (m *Mirror) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if _, ok := m.subs[ch]; ok {
			delete(m.subs, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
	return ch, cancel
}

func (m *Mirror) publish(ev Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
