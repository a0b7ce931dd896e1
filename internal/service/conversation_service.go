// Package service 提供业务逻辑层的实现
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"cryptsignal-chat/internal/api"
	"cryptsignal-chat/internal/logger"
	"cryptsignal-chat/internal/model"
	"cryptsignal-chat/internal/repository"
)

// 会话服务相关错误
var (
	ErrEmptyContent = errors.New("消息内容不能为空")
)

// Asker 上游 AI 服务，失败时返回可展示的回复文本
type Asker interface {
	Ask(ctx context.Context, req api.GenerateRequest) string
}

// ConversationService 会话服务
// 处理会话的增删查与一问一答
type ConversationService struct {
	store repository.Store
	ai    Asker
	log   *zap.Logger
}

// NewConversationService 创建 ConversationService 实例
func NewConversationService(store repository.Store, ai Asker, log *zap.Logger) *ConversationService {
	return &ConversationService{
		store: store,
		ai:    ai,
		log:   logger.OrNop(log).With(zap.String("component", "conversation_service")),
	}
}

// Exchange 一次问答的结果
type Exchange struct {
	UserMessage *model.Message `json:"userMessage"`
	AIMessage   *model.Message `json:"aiMessage"`
}

// List 列出所有会话，最新的在前
func (s *ConversationService) List(ctx context.Context) ([]model.Conversation, error) {
	return s.store.ListConversations(ctx)
}

// Create 创建会话，标题为空时使用默认标题
func (s *ConversationService) Create(ctx context.Context, title string) (*model.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = model.DefaultConversationTitle
	}
	return s.store.CreateConversation(ctx, title)
}

// Delete 删除会话及其消息
func (s *ConversationService) Delete(ctx context.Context, id int64) error {
	return s.store.DeleteConversation(ctx, id)
}

// Messages 按顺序列出会话消息
func (s *ConversationService) Messages(ctx context.Context, id int64) ([]model.Message, error) {
	if _, err := s.store.GetConversation(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, id)
}

// Clear 清空会话消息
func (s *ConversationService) Clear(ctx context.Context, id int64) error {
	if _, err := s.store.GetConversation(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteMessages(ctx, id)
}

// PostMessage 保存用户消息，请求 AI 回复并保存
// AI 失败时保存的是回退文本，调用方总能得到一条助手消息
func (s *ConversationService) PostMessage(ctx context.Context, id int64, content, userID string) (*Exchange, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}

	userMsg, err := s.store.AppendMessage(ctx, id, model.MessageRoleUser, content)
	if err != nil {
		return nil, fmt.Errorf("保存用户消息失败: %w", err)
	}
	if conv.Title == model.DefaultConversationTitle {
		if err := s.store.UpdateTitle(ctx, id, model.TitleFromMessage(content)); err != nil {
			s.log.Warn("更新会话标题失败", zap.Int64("conversation_id", id), zap.Error(err))
		}
	}

	reply := s.Reply(ctx, content, userID)
	aiMsg, err := s.store.AppendMessage(ctx, id, model.MessageRoleAssistant, reply)
	if err != nil {
		return nil, fmt.Errorf("保存助手回复失败: %w", err)
	}

	return &Exchange{UserMessage: userMsg, AIMessage: aiMsg}, nil
}

// Reply 只请求 AI 回复，不写入存储
func (s *ConversationService) Reply(ctx context.Context, content, userID string) string {
	return s.ai.Ask(ctx, api.GenerateRequest{Query: content, UserID: userID})
}
