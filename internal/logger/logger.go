// Package logger 根据日志配置构建 zap Logger
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options 日志配置
type Options struct {
	Level  string // 日志级别: debug/info/warn/error
	Format string // 日志格式: json/console
}

// New 创建 Logger
// format 为 json 时使用生产编码器，否则使用开发编码器（便于终端阅读）
func New(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil {
		return nil, fmt.Errorf("无效的日志级别 %q: %w", opts.Level, err)
	}

	var cfg zap.Config
	switch strings.ToLower(opts.Format) {
	case "", "json":
		cfg = zap.NewProductionConfig()
	case "console", "text":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("无效的日志格式 %q", opts.Format)
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	return cfg.Build()
}

// OrNop 在 l 为 nil 时返回空 Logger
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
