// Package cmd 实现 CLI 命令
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"cryptsignal-chat/internal/api"
	"cryptsignal-chat/internal/chat"
	"cryptsignal-chat/internal/config"
	"cryptsignal-chat/internal/logger"
	"cryptsignal-chat/internal/repository"
	"cryptsignal-chat/internal/reveal"
	"cryptsignal-chat/internal/router"
	"cryptsignal-chat/internal/websocket"
)

var rootCmd = &cobra.Command{
	Use:   "cryptsignal",
	Short: "CryptSignal - 终端里的 AI 聊天客户端",
	Long: `CryptSignal CLI 客户端

通过实时推送通道与服务器对话，助手回复按配置的节奏逐字显示。
推送通道不可用时自动改用 HTTP 接口。

直接运行即可进入交互模式，输入 /help 查看命令。`,
	Run: runInteractive,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// 全局参数
	rootCmd.PersistentFlags().StringP("server", "s", "", "服务器地址 (默认: http://localhost:8080)")
	rootCmd.PersistentFlags().String("config-dir", "", "配置目录 (默认: ~/.cryptsignal)")
	rootCmd.Flags().StringP("mode", "m", "", "显示模式: instant / typewriter / natural")
}

func initConfig() {
	dir, _ := rootCmd.PersistentFlags().GetString("config-dir")
	if err := config.Init(dir); err != nil {
		fmt.Fprintf(os.Stderr, "初始化配置失败: %v\n", err)
		os.Exit(1)
	}

	// 如果指定了服务器地址，更新配置
	if server, _ := rootCmd.PersistentFlags().GetString("server"); server != "" {
		config.SetServerURL(server)
	}
}

// runInteractive 交互式主流程
func runInteractive(cmd *cobra.Command, args []string) {
	cfg := config.Client()

	log, err := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	style := cfg.Chat.TypingStyle
	if flag, _ := cmd.Flags().GetString("mode"); flag != "" {
		style = flag
	}
	mode, err := reveal.ParseMode(style)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}

	// 输出不是终端时不做逐字显示和样式
	var formatter reveal.Formatter = reveal.PlainFormatter{}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		formatter = reveal.NewTerminalFormatter()
	} else {
		mode = reveal.ModeInstant
	}

	vocab, err := router.VocabularyByName(cfg.Protocol.Vocabulary)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}

	store, err := openStore(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 打开本地存储失败: %v\n", err)
		os.Exit(1)
	}

	printBanner()
	if config.GetUserID() == "" {
		fmt.Println("⚠️  未设置用户身份，推送通道不可用，将使用 HTTP 接口")
		fmt.Println("   运行 'cryptsignal login' 设置身份")
		fmt.Println()
	}

	view := newTerminalView(os.Stdout)
	engine := reveal.NewEngine(mode, reveal.EngineOptions{
		TypewriterTick: cfg.Chat.TypewriterTick,
		Formatter:      formatter,
		Logger:         log,
	})

	manager := websocket.NewManager(websocket.Options{
		URL:         cfg.Server.WSURL,
		MaxAttempts: cfg.Reconnect.MaxAttempts,
		BaseDelay:   cfg.Reconnect.BaseDelay,
		Identity: websocket.IdentityFunc(func() (string, bool) {
			id := config.GetUserID()
			return id, id != ""
		}),
		Logger: log,
	})

	fallback := api.NewClient(strings.TrimSuffix(cfg.Server.URL, "/")+cfg.Server.GeneratePath, api.DefaultTimeout, log)

	session := chat.New(chat.Options{
		Store:      store,
		Engine:     engine,
		Conn:       manager,
		Fallback:   fallback,
		View:       view,
		Vocabulary: vocab,
		UserID:     config.GetUserID(),
		Logger:     log,
	})

	manager.OnFrame(session.HandleFrame)
	manager.OnError(func(err error) { view.ShowError(err.Error()) })
	manager.OnStateChange(func(s websocket.State) {
		log.Debug("推送通道状态", zap.Stringer("state", s))
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go manager.Run(ctx)
	manager.Init()

	fmt.Printf("📡 服务器: %s\n", cfg.Server.URL)
	fmt.Printf("🎬 显示模式: %s\n", mode)
	fmt.Println("─────────────────────────────────")
	fmt.Println()

	r := &repl{session: session, engine: engine, view: view}
	lines := readLines(ctx)
	for {
		select {
		case <-ctx.Done():
			shutdown(session, engine)
			return
		case line, ok := <-lines:
			if !ok || r.handle(ctx, line) {
				shutdown(session, engine)
				return
			}
		}
	}
}

func shutdown(session *chat.Session, engine *reveal.Engine) {
	session.Logout()
	engine.Wait()
	fmt.Println()
	fmt.Println("✅ 已断开连接，再见！")
}

// openStore 打开本地会话存储，路径为空时仅保存在内存
func openStore(path string) (repository.Store, error) {
	if path == "" {
		return repository.NewMemoryStore(clockwork.NewRealClock()), nil
	}
	db, err := repository.OpenDatabase(config.DatabaseConfig{Driver: "sqlite", Path: path}, false)
	if err != nil {
		return nil, err
	}
	return repository.NewGormStore(db, clockwork.NewRealClock()), nil
}

// readLines 在后台读取标准输入
func readLines(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func printBanner() {
	fmt.Println()
	fmt.Println("╔════════════════════════════════════════════════╗")
	fmt.Println("║            💬 CryptSignal CLI 客户端            ║")
	fmt.Println("║                                                ║")
	fmt.Println("║   输入消息开始对话，/help 查看命令              ║")
	fmt.Println("╚════════════════════════════════════════════════╝")
	fmt.Println()
}
