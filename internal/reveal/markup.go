package reveal

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Formatter 无状态的文本到展示格式的转换
// 每一步都对已显示前缀重新执行，避免提前暴露未显示部分的格式边界
type Formatter interface {
	Format(raw string) string
}

var (
	// 标记内容不能为空，未闭合的 ** 不会被当作空斜体
	boldPattern   = regexp.MustCompile(`\*\*([^*\n]+?)\*\*`)
	italicPattern = regexp.MustCompile(`\*([^*\n]+)\*`)
	codePattern   = regexp.MustCompile("`([^`\n]+)`")
)

// PlainFormatter 原样输出
type PlainFormatter struct{}

// Format 实现 Formatter
func (PlainFormatter) Format(raw string) string { return raw }

// HTMLFormatter 转换为 HTML 片段
type HTMLFormatter struct {
	CodeClass string
}

// Format 实现 Formatter
// 含有图片标记的内容原样返回
func (f HTMLFormatter) Format(raw string) string {
	if strings.Contains(raw, "<img") {
		return raw
	}

	out := boldPattern.ReplaceAllString(raw, "<strong>$1</strong>")
	out = italicPattern.ReplaceAllString(out, "<em>$1</em>")
	if f.CodeClass != "" {
		out = codePattern.ReplaceAllString(out, `<code class="`+f.CodeClass+`">$1</code>`)
	} else {
		out = codePattern.ReplaceAllString(out, "<code>$1</code>")
	}
	return strings.ReplaceAll(out, "\n", "<br>")
}

// TerminalFormatter 使用 lipgloss 样式渲染到终端
type TerminalFormatter struct {
	Bold   lipgloss.Style
	Italic lipgloss.Style
	Code   lipgloss.Style
}

// NewTerminalFormatter 创建默认终端样式
func NewTerminalFormatter() TerminalFormatter {
	return TerminalFormatter{
		Bold:   lipgloss.NewStyle().Bold(true),
		Italic: lipgloss.NewStyle().Italic(true),
		Code:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
}

// Format 实现 Formatter
func (f TerminalFormatter) Format(raw string) string {
	out := replaceStyled(boldPattern, raw, f.Bold)
	out = replaceStyled(italicPattern, out, f.Italic)
	return replaceStyled(codePattern, out, f.Code)
}

func replaceStyled(re *regexp.Regexp, s string, style lipgloss.Style) string {
	return re.ReplaceAllStringFunc(s, func(match string) string {
		sub := re.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		return style.Render(sub[1])
	})
}
