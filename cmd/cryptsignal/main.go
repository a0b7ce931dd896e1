// CryptSignal CLI 客户端入口
package main

import "cryptsignal-chat/internal/cmd"

func main() {
	cmd.Execute()
}
