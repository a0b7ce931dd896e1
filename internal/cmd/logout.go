// Package cmd 实现 CLI 命令
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cryptsignal-chat/internal/config"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "清除本地身份",
	Long: `清除本地保存的用户身份。

清除后推送通道无法握手，需要重新运行 'cryptsignal login'。`,
	Run: runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) {
	if config.GetUserID() == "" {
		fmt.Println("当前未设置身份")
		return
	}

	if err := config.ClearIdentity(); err != nil {
		fmt.Fprintf(os.Stderr, "清除身份失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✓ 已清除本地身份")
}
