package cmd

import (
	"context"
	"strconv"
	"strings"

	"cryptsignal-chat/internal/chat"
	"cryptsignal-chat/internal/model"
	"cryptsignal-chat/internal/reveal"
)

const replHelp = `可用命令:
  /new            新建会话
  /list           列出会话
  /switch <id>    切换会话
  /delete <id>    删除会话
  /clear          清空当前会话
  /stop           停止当前回复的显示
  /mode <mode>    切换显示模式 (instant/typewriter/natural)
  /quit           退出
其他输入作为消息发送`

// repl 交互式命令处理
type repl struct {
	session *chat.Session
	engine  *reveal.Engine
	view    *terminalView
}

// handle 处理一行输入，返回是否退出
func (r *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		if _, err := r.session.Send(ctx, line); err != nil {
			r.view.ShowError(err.Error())
		}
		return false
	}

	fields := strings.Fields(line)
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "/quit", "/exit":
		return true

	case "/help":
		r.view.Println(replHelp)

	case "/new":
		conv, err := r.session.NewChat(ctx)
		if err != nil {
			r.view.ShowError(err.Error())
			return false
		}
		r.view.Printf("✓ 已创建会话 #%d\n", conv.ID)

	case "/list":
		convs, err := r.session.Conversations(ctx)
		if err != nil {
			r.view.ShowError(err.Error())
			return false
		}
		if len(convs) == 0 {
			r.view.Println("暂无会话")
		}
		active := r.session.Active()
		for _, c := range convs {
			mark := " "
			if c.ID == active {
				mark = "*"
			}
			r.view.Printf("%s #%d  %s  (%s)\n", mark, c.ID, c.Title, c.CreatedAt.Format("2006-01-02 15:04"))
		}

	case "/switch":
		id, ok := r.parseID(arg)
		if !ok {
			return false
		}
		msgs, err := r.session.Switch(ctx, id)
		if err != nil {
			r.view.ShowError(err.Error())
			return false
		}
		r.printHistory(msgs)

	case "/delete":
		id, ok := r.parseID(arg)
		if !ok {
			return false
		}
		if err := r.session.DeleteChat(ctx, id); err != nil {
			r.view.ShowError(err.Error())
			return false
		}
		r.view.Printf("✓ 已删除会话 #%d\n", id)

	case "/clear":
		if err := r.session.ClearChat(ctx); err != nil {
			r.view.ShowError(err.Error())
			return false
		}
		r.view.Println("✓ 已清空当前会话")

	case "/stop":
		if r.session.StopGenerating() {
			r.view.Println()
		}

	case "/mode":
		mode, err := reveal.ParseMode(arg)
		if err != nil {
			r.view.ShowError(err.Error())
			return false
		}
		r.engine.SetMode(mode)
		r.view.Printf("✓ 显示模式: %s\n", mode)

	default:
		r.view.ShowError("未知命令: " + fields[0] + "，输入 /help 查看帮助")
	}
	return false
}

func (r *repl) parseID(arg string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil || id <= 0 {
		r.view.ShowError("请提供有效的会话 ID")
		return 0, false
	}
	return id, true
}

func (r *repl) printHistory(msgs []model.Message) {
	for _, m := range msgs {
		who := "你"
		if m.Role == model.MessageRoleAssistant {
			who = "AI"
		}
		r.view.Printf("%s: %s\n", who, m.Content)
	}
}
