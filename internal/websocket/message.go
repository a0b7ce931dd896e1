// Package websocket 维护与服务器的实时推送连接
// 断线后按线性退避自动重连，超过次数上限后进入 Failed 状态
package websocket

import (
	"encoding/json"
	"fmt"
)

// 帧类型常量
const (
	TypeInit        = "init"         // 客户端握手
	TypeSendMessage = "send_message" // 客户端发送用户消息
	TypeNewMessage  = "new_message"  // 助手回复
	TypeMessage     = "message"      // 助手回复（旧版）
	TypeTyping      = "typing"       // 正在生成
	TypeError       = "error"        // 错误
)

// Frame 推送通道上的一帧
// 不同类型使用不同字段，未使用的字段省略
type Frame struct {
	Type           string `json:"type"`
	UserID         string `json:"userId,omitempty"`
	ConversationID int64  `json:"conversationId,omitempty"`
	Text           string `json:"text,omitempty"`
	Content        string `json:"content,omitempty"`
	IsTyping       *bool  `json:"isTyping,omitempty"`
	Message        string `json:"message,omitempty"`
}

// InitFrame 握手帧
func InitFrame(userID string) Frame {
	return Frame{Type: TypeInit, UserID: userID}
}

// SendMessageFrame 用户消息帧
// 正文放在 text 字段，conversationId 为 0 时省略
func SendMessageFrame(conversationID int64, text string) Frame {
	return Frame{Type: TypeSendMessage, ConversationID: conversationID, Text: text}
}

// TypingFrame 生成状态帧
func TypingFrame(typing bool) Frame {
	return Frame{Type: TypeTyping, IsTyping: &typing}
}

// ErrorFrame 错误帧
func ErrorFrame(msg string) Frame {
	return Frame{Type: TypeError, Message: msg}
}

// Typing 返回 isTyping 字段，缺省为 false
func (f Frame) Typing() bool {
	return f.IsTyping != nil && *f.IsTyping
}

// ParseFrame 解析一帧
// 缺少 type 字段视为解析失败
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("解析帧失败: %w", err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("帧缺少 type 字段")
	}
	return f, nil
}
