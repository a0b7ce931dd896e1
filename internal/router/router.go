// Package router 将入站帧分发给对应的处理方
package router

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cryptsignal-chat/internal/logger"
	"cryptsignal-chat/internal/model"
	"cryptsignal-chat/internal/repository"
	"cryptsignal-chat/internal/websocket"
)

// Revealer 为消息启动逐字显示
type Revealer interface {
	Start(messageID int64, text string)
}

// UI 界面状态
type UI interface {
	SetGenerating(generating bool)
	ShowError(message string)
}

// Target 提供助手回复写入的会话
// 没有活动会话时负责创建
type Target interface {
	ActiveConversation(ctx context.Context) (int64, error)
}

// Router 帧分发器
// 帧按到达顺序处理，不按内容重排
type Router struct {
	vocab    Vocabulary
	store    repository.Store
	revealer Revealer
	ui       UI
	target   Target
	log      *zap.Logger
}

// New 创建分发器
func New(vocab Vocabulary, store repository.Store, target Target, revealer Revealer, ui UI, log *zap.Logger) *Router {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Router{
		vocab:    vocab,
		store:    store,
		revealer: revealer,
		ui:       ui,
		target:   target,
		log:      logger.OrNop(log).With(zap.String("component", "router")),
	}
}

// Dispatch 处理一帧，每帧只调用一个处理方
func (r *Router) Dispatch(ctx context.Context, f websocket.Frame) error {
	switch kind := r.vocab.Classify(f); kind {
	case KindAssistantText:
		_, err := r.DeliverTo(ctx, f.ConversationID, assistantText(f))
		return err

	case KindTyping:
		r.ui.SetGenerating(f.Typing())
		return nil

	case KindError:
		msg := f.Message
		if msg == "" {
			msg = f.Content
		}
		r.log.Warn("服务端返回错误", zap.String("message", msg))
		r.ui.ShowError(msg)
		return nil

	default:
		r.log.Info("忽略未知帧类型", zap.String("type", f.Type))
		return nil
	}
}

// Deliver 保存助手回复到当前会话并开始显示
func (r *Router) Deliver(ctx context.Context, text string) (*model.Message, error) {
	return r.DeliverTo(ctx, 0, text)
}

// DeliverTo 保存助手回复到指定会话
// conversationID 为 0 或会话已删除时写入当前会话。
// 先写入存储再渲染，只有当前会话的回复才会显示
func (r *Router) DeliverTo(ctx context.Context, conversationID int64, text string) (*model.Message, error) {
	active, err := r.target.ActiveConversation(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取活动会话失败: %w", err)
	}

	if conversationID != 0 && conversationID != active {
		if _, err := r.store.GetConversation(ctx, conversationID); err != nil {
			r.log.Warn("回复所属会话不存在，写入当前会话",
				zap.Int64("conversation_id", conversationID), zap.Error(err))
			conversationID = active
		}
	}
	if conversationID == 0 {
		conversationID = active
	}

	msg, err := r.store.AppendMessage(ctx, conversationID, model.MessageRoleAssistant, text)
	if err != nil {
		r.log.Error("保存助手回复失败", zap.Int64("conversation_id", conversationID), zap.Error(err))
		return nil, fmt.Errorf("保存助手回复失败: %w", err)
	}

	if conversationID != active {
		r.log.Info("回复属于后台会话，仅保存", zap.Int64("conversation_id", conversationID))
		return msg, nil
	}
	r.revealer.Start(msg.ID, msg.Content)
	return msg, nil
}
