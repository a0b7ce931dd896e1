// Package cmd 实现 CLI 命令
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"cryptsignal-chat/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "显示当前状态",
	Long: `显示当前身份和配置信息。

包括：
- 服务器与推送通道地址
- 用户身份
- 显示模式与重连策略`,
	Run: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := config.Client()

	fmt.Println("╔════════════════════════════════════════════════╗")
	fmt.Println("║           CryptSignal 状态信息                  ║")
	fmt.Println("╠════════════════════════════════════════════════╣")
	fmt.Printf("║  服务器: %s\n", cfg.Server.URL)
	fmt.Printf("║  推送通道: %s\n", cfg.Server.WSURL)

	if id := config.GetUserID(); id != "" {
		fmt.Printf("║  用户: ✓ %s (%s)\n", id, cfg.Identity.Username)
	} else {
		fmt.Println("║  用户: ✗ 未设置")
		fmt.Println("║")
		fmt.Println("║  请运行 'cryptsignal login' 设置身份")
	}

	fmt.Printf("║  显示模式: %s\n", cfg.Chat.TypingStyle)
	fmt.Printf("║  重连: 最多 %d 次，基础间隔 %s\n", cfg.Reconnect.MaxAttempts, cfg.Reconnect.BaseDelay)
	fmt.Printf("║  协议: %s\n", cfg.Protocol.Vocabulary)
	fmt.Printf("║  配置目录: %s\n", config.Dir())
	fmt.Println("╚════════════════════════════════════════════════╝")
}
