// Package reveal 实现助手回复的逐字显示
// 给定完整文本，按节奏生成逐步增长的前缀，模拟真人打字
package reveal

import (
	"fmt"
	"strings"
)

// Mode 显示节奏
type Mode string

// 三种互斥的节奏
const (
	ModeInstant    Mode = "instant"    // 一次性显示
	ModeTypewriter Mode = "typewriter" // 固定间隔逐字显示
	ModeNatural    Mode = "natural"    // 随机分块，标点处停顿
)

// ParseMode 解析配置中的节奏名称
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeInstant, ModeTypewriter, ModeNatural:
		return m, nil
	default:
		return "", fmt.Errorf("未知的显示模式: %q", s)
	}
}
