// Package chat 组合存储、推送通道与逐字显示，实现一次聊天会话的控制流
package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"cryptsignal-chat/internal/api"
	"cryptsignal-chat/internal/logger"
	"cryptsignal-chat/internal/model"
	"cryptsignal-chat/internal/repository"
	"cryptsignal-chat/internal/reveal"
	"cryptsignal-chat/internal/router"
	"cryptsignal-chat/internal/websocket"
)

// ErrEmptyMessage 消息内容为空
var ErrEmptyMessage = errors.New("消息内容不能为空")

// Connection 推送通道
type Connection interface {
	State() websocket.State
	Send(v any) error
	Disconnect()
}

// Asker 回退通道，失败时返回可展示的回复文本
type Asker interface {
	Ask(ctx context.Context, req api.GenerateRequest) string
}

// View 会话的展示端
type View interface {
	reveal.Sink
	SetGenerating(generating bool)
	ShowError(message string)
}

// Options 会话参数
type Options struct {
	Store      repository.Store
	Engine     *reveal.Engine
	Conn       Connection // 可为 nil，此时只走回退通道
	Fallback   Asker
	View       View
	Vocabulary router.Vocabulary
	UserID     string
	Logger     *zap.Logger
}

// Session 一个用户的聊天会话
type Session struct {
	store    repository.Store
	engine   *reveal.Engine
	conn     Connection
	fallback Asker
	view     View
	userID   string
	router   *router.Router
	log      *zap.Logger

	mu        sync.Mutex
	active    int64 // 当前会话 ID，0 表示尚未创建
	streaming int64 // 最近开始显示的消息 ID
}

// New 创建聊天会话
func New(opts Options) *Session {
	s := &Session{
		store:    opts.Store,
		engine:   opts.Engine,
		conn:     opts.Conn,
		fallback: opts.Fallback,
		view:     opts.View,
		userID:   opts.UserID,
		log:      logger.OrNop(opts.Logger).With(zap.String("component", "chat")),
	}
	s.router = router.New(opts.Vocabulary, opts.Store, s, s, opts.View, opts.Logger)
	return s
}

// HandleFrame 处理推送通道上的一帧
func (s *Session) HandleFrame(f websocket.Frame) {
	if err := s.router.Dispatch(context.Background(), f); err != nil {
		s.log.Error("处理推送帧失败", zap.String("type", f.Type), zap.Error(err))
		s.view.ShowError(err.Error())
	}
}

// Send 发送用户消息
// 推送通道打开时经推送通道发送，否则经 HTTP 回退通道同步获取回复
func (s *Session) Send(ctx context.Context, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	conversationID, err := s.ActiveConversation(ctx)
	if err != nil {
		return nil, err
	}

	msg, err := s.store.AppendMessage(ctx, conversationID, model.MessageRoleUser, text)
	if err != nil {
		return nil, fmt.Errorf("保存用户消息失败: %w", err)
	}
	if err := s.deriveTitle(ctx, conversationID, text); err != nil {
		s.log.Warn("更新会话标题失败", zap.Int64("conversation_id", conversationID), zap.Error(err))
	}

	if s.conn != nil && s.conn.State() == websocket.StateOpen {
		err := s.conn.Send(websocket.SendMessageFrame(conversationID, text))
		if err == nil {
			return msg, nil
		}
		s.log.Warn("推送通道发送失败，改用回退通道", zap.Error(err))
	}

	return msg, s.askFallback(ctx, conversationID, text)
}

func (s *Session) askFallback(ctx context.Context, conversationID int64, text string) error {
	if s.fallback == nil {
		s.view.ShowError(api.ReplyUnreachable)
		return fmt.Errorf("推送通道未打开且没有回退通道")
	}

	s.view.SetGenerating(true)
	reply := s.fallback.Ask(ctx, api.GenerateRequest{
		Query:     text,
		UserID:    s.userID,
		SessionID: strconv.FormatInt(conversationID, 10),
	})
	s.view.SetGenerating(false)

	_, err := s.router.DeliverTo(ctx, conversationID, reply)
	return err
}

// deriveTitle 第一条用户消息决定会话标题
func (s *Session) deriveTitle(ctx context.Context, conversationID int64, text string) error {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.Title != model.DefaultConversationTitle {
		return nil
	}
	return s.store.UpdateTitle(ctx, conversationID, model.TitleFromMessage(text))
}

// ActiveConversation 返回当前会话，没有时创建
func (s *Session) ActiveConversation(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != 0 {
		return s.active, nil
	}
	conv, err := s.store.CreateConversation(ctx, model.DefaultConversationTitle)
	if err != nil {
		return 0, fmt.Errorf("创建会话失败: %w", err)
	}
	s.active = conv.ID
	return s.active, nil
}

// Active 当前会话 ID，0 表示没有
func (s *Session) Active() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Start 为助手回复启动逐字显示
func (s *Session) Start(messageID int64, text string) {
	s.mu.Lock()
	s.streaming = messageID
	s.mu.Unlock()

	s.engine.Start(messageID, text, s.view)
}

// StopGenerating 停止当前正在显示的回复
// 已保存的消息不受影响
func (s *Session) StopGenerating() bool {
	s.mu.Lock()
	id := s.streaming
	s.streaming = 0
	s.mu.Unlock()

	s.view.SetGenerating(false)
	if id == 0 {
		return false
	}
	return s.engine.Cancel(id)
}

// Logout 取消所有显示并主动断开推送通道
func (s *Session) Logout() {
	s.engine.CancelAll()
	if s.conn != nil {
		s.conn.Disconnect()
	}

	s.mu.Lock()
	s.active = 0
	s.streaming = 0
	s.mu.Unlock()
}

// NewChat 创建新会话并设为当前会话
func (s *Session) NewChat(ctx context.Context) (*model.Conversation, error) {
	conv, err := s.store.CreateConversation(ctx, model.DefaultConversationTitle)
	if err != nil {
		return nil, fmt.Errorf("创建会话失败: %w", err)
	}

	s.engine.CancelAll()
	s.mu.Lock()
	s.active = conv.ID
	s.streaming = 0
	s.mu.Unlock()
	return conv, nil
}

// Switch 切换到已有会话，返回其消息
func (s *Session) Switch(ctx context.Context, conversationID int64) ([]model.Message, error) {
	if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	s.engine.CancelAll()
	s.mu.Lock()
	s.active = conversationID
	s.streaming = 0
	s.mu.Unlock()
	return msgs, nil
}

// DeleteChat 删除会话及其消息
func (s *Session) DeleteChat(ctx context.Context, conversationID int64) error {
	if err := s.store.DeleteConversation(ctx, conversationID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == conversationID {
		s.engine.CancelAll()
		s.active = 0
		s.streaming = 0
	}
	return nil
}

// ClearChat 清空当前会话的消息
func (s *Session) ClearChat(ctx context.Context) error {
	s.mu.Lock()
	id := s.active
	s.mu.Unlock()
	if id == 0 {
		return nil
	}

	s.engine.CancelAll()
	return s.store.DeleteMessages(ctx, id)
}

// Conversations 列出所有会话，最新的在前
func (s *Session) Conversations(ctx context.Context) ([]model.Conversation, error) {
	return s.store.ListConversations(ctx)
}

// Messages 当前会话的消息
func (s *Session) Messages(ctx context.Context) ([]model.Message, error) {
	s.mu.Lock()
	id := s.active
	s.mu.Unlock()
	if id == 0 {
		return nil, nil
	}
	return s.store.ListMessages(ctx, id)
}
