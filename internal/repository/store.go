// Package repository 提供会话与消息的存储层
// 对上层只暴露顺序与身份约束：消息按创建时间排序，同一时间按插入顺序，永不重排或按内容去重
package repository

import (
	"context"
	"errors"

	"cryptsignal-chat/internal/model"
)

// 存储层错误
var (
	ErrConversationNotFound = errors.New("会话不存在")
	ErrInvalidRole          = errors.New("无效的消息角色")
)

// Store 会话存储接口
// 是会话与消息记录的唯一写入方
type Store interface {
	// CreateConversation 创建会话
	CreateConversation(ctx context.Context, title string) (*model.Conversation, error)
	// GetConversation 获取会话，不存在返回 ErrConversationNotFound
	GetConversation(ctx context.Context, id int64) (*model.Conversation, error)
	// ListConversations 列出所有会话，最新的在前
	ListConversations(ctx context.Context) ([]model.Conversation, error)
	// UpdateTitle 更新会话标题
	UpdateTitle(ctx context.Context, id int64, title string) error
	// AppendMessage 追加消息，顺序由存储层决定，调用方不能指定
	AppendMessage(ctx context.Context, conversationID int64, role model.MessageRole, content string) (*model.Message, error)
	// ListMessages 按顺序列出会话消息
	ListMessages(ctx context.Context, conversationID int64) ([]model.Message, error)
	// DeleteConversation 删除会话及其所有消息
	DeleteConversation(ctx context.Context, id int64) error
	// DeleteMessages 清空会话消息，会话本身保留
	DeleteMessages(ctx context.Context, conversationID int64) error
}
