package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"cryptsignal-chat/internal/reveal"
)

// terminalView 将助手回复逐步输出到终端
// 格式变化导致已输出内容改变时，重绘当前行
type terminalView struct {
	mu      sync.Mutex
	out     io.Writer
	shown   map[int64]string // 每条消息已输出的展示内容
	prompt  lipgloss.Style
	errText lipgloss.Style
	status  lipgloss.Style
}

func newTerminalView(out io.Writer) *terminalView {
	return &terminalView{
		out:     out,
		shown:   make(map[int64]string),
		prompt:  lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		errText: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		status:  lipgloss.NewStyle().Faint(true),
	}
}

// Render 实现 reveal.Sink
func (v *terminalView) Render(messageID int64, step reveal.Step) {
	v.mu.Lock()
	defer v.mu.Unlock()

	prev, started := v.shown[messageID]
	if !started {
		fmt.Fprint(v.out, v.prompt.Render("AI")+" ")
	}

	display := step.Display
	switch {
	case strings.HasPrefix(display, prev):
		fmt.Fprint(v.out, display[len(prev):])
	default:
		// 只重绘最后一行，之前的行已经稳定
		line := display
		if i := strings.LastIndex(display, "\n"); i >= 0 {
			line = display[i+1:]
		}
		fmt.Fprint(v.out, "\r\x1b[2K"+line)
	}

	if step.Final {
		fmt.Fprintln(v.out)
		delete(v.shown, messageID)
		return
	}
	v.shown[messageID] = display
}

// SetGenerating 显示或清除生成提示
func (v *terminalView) SetGenerating(generating bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if generating {
		fmt.Fprintln(v.out, v.status.Render("… 正在生成"))
	}
}

// ShowError 输出错误
func (v *terminalView) ShowError(message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, v.errText.Render("✗ "+message))
}

// Println 在没有回复输出时打印一行
func (v *terminalView) Println(a ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, a...)
}

// Printf 格式化输出
func (v *terminalView) Printf(format string, a ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, format, a...)
}
