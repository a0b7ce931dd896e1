package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"

	"cryptsignal-chat/internal/model"
)

// MemoryStore 内存存储
// 进程退出后数据丢失，用于测试和无本地数据库的客户端
type MemoryStore struct {
	mu            sync.RWMutex
	clock         clockwork.Clock
	conversations map[int64]*model.Conversation
	messages      map[int64][]model.Message // conversationID -> 按插入顺序
	nextConvID    int64
	nextMsgID     int64
}

// NewMemoryStore 创建内存存储，clock 为 nil 时使用真实时钟
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		clock:         clock,
		conversations: make(map[int64]*model.Conversation),
		messages:      make(map[int64][]model.Message),
		nextConvID:    1,
		nextMsgID:     1,
	}
}

// CreateConversation 创建会话
func (s *MemoryStore) CreateConversation(_ context.Context, title string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := &model.Conversation{
		ID:        s.nextConvID,
		Title:     title,
		CreatedAt: s.clock.Now(),
	}
	s.nextConvID++
	s.conversations[conv.ID] = conv

	out := *conv
	return &out, nil
}

// GetConversation 获取会话
func (s *MemoryStore) GetConversation(_ context.Context, id int64) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	out := *conv
	return &out, nil
}

// ListConversations 列出会话，最新的在前
func (s *MemoryStore) ListConversations(_ context.Context) ([]model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]model.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		list = append(list, *conv)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

// UpdateTitle 更新标题
func (s *MemoryStore) UpdateTitle(_ context.Context, id int64, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return ErrConversationNotFound
	}
	conv.Title = title
	return nil
}

// AppendMessage 追加消息
// 创建时间不早于同一会话的上一条消息，时钟回拨时沿用上一条的时间，顺序由插入位置保证
func (s *MemoryStore) AppendMessage(_ context.Context, conversationID int64, role model.MessageRole, content string) (*model.Message, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return nil, ErrConversationNotFound
	}

	now := s.clock.Now()
	existing := s.messages[conversationID]
	if n := len(existing); n > 0 && now.Before(existing[n-1].CreatedAt) {
		now = existing[n-1].CreatedAt
	}

	msg := model.Message{
		ID:             s.nextMsgID,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      now,
	}
	s.nextMsgID++
	s.messages[conversationID] = append(existing, msg)

	out := msg
	return &out, nil
}

// ListMessages 按顺序列出消息
func (s *MemoryStore) ListMessages(_ context.Context, conversationID int64) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return nil, ErrConversationNotFound
	}
	msgs := s.messages[conversationID]
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// DeleteConversation 删除会话（级联删除消息）
func (s *MemoryStore) DeleteConversation(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return ErrConversationNotFound
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

// DeleteMessages 清空会话消息
func (s *MemoryStore) DeleteMessages(_ context.Context, conversationID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return ErrConversationNotFound
	}
	delete(s.messages, conversationID)
	return nil
}
