// Package cmd 实现 CLI 命令
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"cryptsignal-chat/internal/config"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "设置用户身份",
	Long: `设置推送通道握手使用的用户身份。

身份由外部账号系统分配，这里只保存到本地配置。`,
	Run: runLogin,
}

func init() {
	loginCmd.Flags().String("user-id", "", "用户 ID")
	loginCmd.Flags().String("username", "", "用户名")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	userID, _ := cmd.Flags().GetString("user-id")
	username, _ := cmd.Flags().GetString("username")

	reader := bufio.NewReader(os.Stdin)
	if userID == "" {
		fmt.Print("请输入用户 ID: ")
		line, _ := reader.ReadString('\n')
		userID = strings.TrimSpace(line)
	}
	if userID == "" {
		fmt.Fprintln(os.Stderr, "✗ 用户 ID 不能为空")
		os.Exit(1)
	}
	if username == "" {
		fmt.Print("请输入用户名（可选）: ")
		line, _ := reader.ReadString('\n')
		username = strings.TrimSpace(line)
	}

	if err := config.SaveIdentity(userID, username); err != nil {
		fmt.Fprintf(os.Stderr, "✗ 保存身份失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ 身份已保存")
	fmt.Printf("  👤 用户: %s\n", userID)
}
