package model

// titleMaxRunes 标题最多保留的字符数
const titleMaxRunes = 30

// TitleFromMessage 由第一条用户消息推导会话标题
// 超过 30 个字符时截断并追加 "..."
func TitleFromMessage(content string) string {
	runes := []rune(content)
	if len(runes) <= titleMaxRunes {
		return content
	}
	return string(runes[:titleMaxRunes]) + "..."
}
