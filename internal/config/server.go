package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 是服务端的根配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`   // 服务器配置
	Database DatabaseConfig `mapstructure:"database"` // 数据库配置
	Redis    RedisConfig    `mapstructure:"redis"`    // Redis 配置
	AI       AIConfig       `mapstructure:"ai"`       // 上游 AI 服务
	Log      LogConfig      `mapstructure:"log"`      // 日志配置
}

// ServerConfig 服务器相关配置
type ServerConfig struct {
	Port int      `mapstructure:"port"` // 监听端口，默认 8080
	Mode string   `mapstructure:"mode"` // 运行模式: debug / release
	CORS []string `mapstructure:"cors"` // CORS 允许的域名
}

// DatabaseConfig 数据库连接配置
// driver 为 mysql 时使用 MySQL 字段，为 sqlite 时使用 Path
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Path         string `mapstructure:"path"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	Charset      string `mapstructure:"charset"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxLifetime  int    `mapstructure:"max_lifetime"` // 秒
}

// RedisConfig Redis 连接配置，Host 为空表示不启用
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// AIConfig 上游 AI 服务配置
type AIConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug/info/warn/error
	Format string `mapstructure:"format"` // json/console
}

// Load 从指定目录加载 config.yaml，支持环境变量覆盖
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	// 例如: DATABASE_HOST -> database.host
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVariables(v)
	setServerDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.mode", "SERVER_MODE")

	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.path", "DATABASE_PATH")
	v.BindEnv("database.host", "MYSQL_HOST")
	v.BindEnv("database.port", "MYSQL_PORT")
	v.BindEnv("database.username", "MYSQL_USERNAME")
	v.BindEnv("database.password", "MYSQL_PASSWORD")
	v.BindEnv("database.database", "MYSQL_DATABASE")

	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	v.BindEnv("ai.endpoint", "AI_ENDPOINT")
}

func setServerDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors", []string{"http://localhost:3000", "http://localhost:5173"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "cryptsignal.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.max_lifetime", 3600)

	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("ai.endpoint", "https://cryptsignal-backend.onrender.com/api/generate")
	v.SetDefault("ai.timeout", "60s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
