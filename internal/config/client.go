// Package config 管理客户端与服务端配置
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ClientConfig CLI 客户端配置结构
type ClientConfig struct {
	Server    ClientServerConfig `mapstructure:"server"`
	Identity  IdentityConfig     `mapstructure:"identity"`
	Chat      ChatConfig         `mapstructure:"chat"`
	Reconnect ReconnectConfig    `mapstructure:"reconnect"`
	Protocol  ProtocolConfig     `mapstructure:"protocol"`
	Store     StoreConfig        `mapstructure:"store"`
	Log       LogConfig          `mapstructure:"log"`
}

// ClientServerConfig 服务器地址
type ClientServerConfig struct {
	URL          string `mapstructure:"url"`           // HTTP 地址（fallback 请求）
	WSURL        string `mapstructure:"ws_url"`        // 推送通道地址
	GeneratePath string `mapstructure:"generate_path"` // fallback 接口路径
}

// IdentityConfig 身份信息，由外部认证流程写入
type IdentityConfig struct {
	UserID   string `mapstructure:"user_id"`
	Username string `mapstructure:"username"`
}

// ChatConfig 聊天展示配置
type ChatConfig struct {
	TypingStyle    string        `mapstructure:"typing_style"`    // instant / typewriter / natural
	TypewriterTick time.Duration `mapstructure:"typewriter_tick"` // typewriter 每个字符的间隔
}

// ReconnectConfig 重连策略
type ReconnectConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
}

// ProtocolConfig 推送通道协议配置
type ProtocolConfig struct {
	Vocabulary string `mapstructure:"vocabulary"` // default / legacy
}

// StoreConfig 本地会话存储
type StoreConfig struct {
	Path string `mapstructure:"path"` // SQLite 文件路径，空表示仅内存
}

var (
	clientCfg  *ClientConfig
	configPath string
	configDir  string
)

// ErrNotInitialized 配置尚未初始化
var ErrNotInitialized = errors.New("配置未初始化")

// Init 初始化客户端配置
// dir 为空时使用 ~/.cryptsignal
func Init(dir string) error {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("获取用户目录失败: %w", err)
		}
		dir = filepath.Join(home, ".cryptsignal")
	}

	configDir = dir
	configPath = filepath.Join(configDir, "config.yaml")

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	viper.Reset()
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("CRYPTSIGNAL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setClientDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// 文件不存在时写出默认配置
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if err := viper.WriteConfigAs(configPath); err != nil {
				return fmt.Errorf("写入默认配置失败: %w", err)
			}
		} else {
			return fmt.Errorf("读取配置失败: %w", err)
		}
	}

	cfg := &ClientConfig{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("解析配置失败: %w", err)
	}
	clientCfg = cfg
	return nil
}

func setClientDefaults() {
	viper.SetDefault("server.url", "http://localhost:8080")
	viper.SetDefault("server.ws_url", "ws://localhost:8080/ws")
	viper.SetDefault("server.generate_path", "/api/generate")
	viper.SetDefault("identity.user_id", "")
	viper.SetDefault("identity.username", "")
	viper.SetDefault("chat.typing_style", "natural")
	viper.SetDefault("chat.typewriter_tick", "30ms")
	viper.SetDefault("reconnect.max_attempts", 5)
	viper.SetDefault("reconnect.base_delay", "1s")
	viper.SetDefault("protocol.vocabulary", "default")
	viper.SetDefault("store.path", filepath.Join(configDir, "chat.db"))
	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.format", "console")
}

// Client 获取客户端配置
func Client() *ClientConfig {
	return clientCfg
}

// Dir 配置目录
func Dir() string {
	return configDir
}

// GetUserID 获取当前身份，未登录返回空
func GetUserID() string {
	if clientCfg == nil {
		return ""
	}
	return clientCfg.Identity.UserID
}

// SaveIdentity 保存身份
func SaveIdentity(userID, username string) error {
	if clientCfg == nil {
		return ErrNotInitialized
	}
	viper.Set("identity.user_id", userID)
	viper.Set("identity.username", username)
	clientCfg.Identity.UserID = userID
	clientCfg.Identity.Username = username
	return viper.WriteConfig()
}

// ClearIdentity 清除本地身份
func ClearIdentity() error {
	return SaveIdentity("", "")
}

// SetServerURL 设置服务器地址，同时推导推送通道地址
func SetServerURL(url string) {
	wsURL := url
	switch {
	case strings.HasPrefix(url, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(url, "http://")
	}
	wsURL = strings.TrimSuffix(wsURL, "/") + "/ws"

	viper.Set("server.url", url)
	viper.Set("server.ws_url", wsURL)
	if clientCfg != nil {
		clientCfg.Server.URL = url
		clientCfg.Server.WSURL = wsURL
	}
}
