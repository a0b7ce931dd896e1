// Package model 定义了与数据库表对应的数据结构
package model

import (
	"time"
)

// DefaultConversationTitle 新会话的默认标题
const DefaultConversationTitle = "New Chat"

// Conversation 会话模型
// 对应数据库表 conversations
type Conversation struct {
	// ID 会话唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// Title 显示标题，由第一条用户消息推导
	Title string `gorm:"size:100;not null" json:"title"`

	// CreatedAt 创建时间
	CreatedAt time.Time `gorm:"index" json:"createdAt"`

	// Messages 会话中的所有消息（一对多关系）
	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// TableName 指定表名
func (Conversation) TableName() string {
	return "conversations"
}
