package model

import (
	"time"
)

// MessageRole 消息角色
type MessageRole string

// 消息角色常量
const (
	MessageRoleUser      MessageRole = "user"      // 用户消息
	MessageRoleAssistant MessageRole = "assistant" // AI 助手响应
)

// Valid 检查角色是否合法
func (r MessageRole) Valid() bool {
	return r == MessageRoleUser || r == MessageRoleAssistant
}

// Message 消息模型
// 对应数据库表 messages
// 创建后不再修改，编辑视为新消息
type Message struct {
	// ID 消息唯一标识，自增主键，同时作为同一时间戳下的插入顺序
	ID int64 `gorm:"primaryKey" json:"id"`

	// ConversationID 所属会话ID
	ConversationID int64 `gorm:"index:idx_conversation_order,priority:1;not null" json:"conversationId"`

	// Role 消息角色
	Role MessageRole `gorm:"size:20;not null" json:"role"`

	// Content 消息内容，可能包含 **粗体**、*斜体*、`代码`、图片标记和换行
	Content string `gorm:"type:text;not null" json:"content"`

	// CreatedAt 创建时间，同一会话内单调不减
	CreatedAt time.Time `gorm:"index:idx_conversation_order,priority:2" json:"createdAt"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "messages"
}
