package router

import (
	"fmt"
	"strings"

	"cryptsignal-chat/internal/websocket"
)

// Kind 帧的语义类别
type Kind int

const (
	KindUnknown Kind = iota
	KindAssistantText
	KindTyping
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindAssistantText:
		return "assistant_text"
	case KindTyping:
		return "typing"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Vocabulary 帧类型标签到语义类别的映射
// 服务端协议的标签不固定，由配置选择
type Vocabulary map[string]Kind

// 预置词汇表名称
const (
	VocabularyDefault = "default"
	VocabularyLegacy  = "legacy"
)

// DefaultVocabulary 当前服务端使用的标签
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		websocket.TypeNewMessage: KindAssistantText,
		websocket.TypeTyping:     KindTyping,
		websocket.TypeError:      KindError,
	}
}

// LegacyVocabulary 旧版服务端使用的标签
func LegacyVocabulary() Vocabulary {
	return Vocabulary{
		websocket.TypeMessage: KindAssistantText,
		websocket.TypeTyping:  KindTyping,
		websocket.TypeError:   KindError,
	}
}

// VocabularyByName 按名称获取预置词汇表
func VocabularyByName(name string) (Vocabulary, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", VocabularyDefault:
		return DefaultVocabulary(), nil
	case VocabularyLegacy:
		return LegacyVocabulary(), nil
	default:
		return nil, fmt.Errorf("未知的协议词汇表: %q", name)
	}
}

// Classify 返回帧的语义类别
func (v Vocabulary) Classify(f websocket.Frame) Kind {
	if k, ok := v[f.Type]; ok {
		return k
	}
	return KindUnknown
}

// assistantText 优先取 text 字段，旧版协议使用 content
func assistantText(f websocket.Frame) string {
	if f.Text != "" {
		return f.Text
	}
	return f.Content
}
