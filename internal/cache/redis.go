// Package cache 提供 Redis 缓存操作的封装
// 记录推送通道的用户在线状态
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cryptsignal-chat/internal/config"
)

// HeartbeatTTL 心跳过期时间
// 超过该时间没有刷新心跳的用户视为离线
const HeartbeatTTL = 2 * time.Minute

const onlineUsersKey = "online:users"

func connectionsKey(userID string) string { return fmt.Sprintf("user:%s:connections", userID) }
func heartbeatKey(userID string) string { return fmt.Sprintf("user:%s:heartbeat", userID) }

// RedisCache 封装 Redis 客户端，提供在线状态操作
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache 创建 RedisCache 实例并测试连接
// 参数:
//   - cfg: Redis 连接配置
//
// 返回:
//   - *RedisCache: 缓存实例
//   - error: 连接错误
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Close 关闭 Redis 连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// SetUserOnline 记录用户的一条推送连接
// 在握手成功后调用，同一用户可以有多条连接
// 参数:
//   - ctx: 上下文
//   - userID: 用户标识
//   - connID: 连接标识
func (c *RedisCache) SetUserOnline(ctx context.Context, userID, connID string) error {
	pipe := c.client.TxPipeline()
	pipe.SAdd(ctx, onlineUsersKey, userID)
	pipe.SAdd(ctx, connectionsKey(userID), connID)
	pipe.Set(ctx, heartbeatKey(userID), time.Now().Unix(), HeartbeatTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// SetUserOffline 移除用户的一条推送连接
// 最后一条连接断开时用户离线
// 参数:
//   - ctx: 上下文
//   - userID: 用户标识
//   - connID: 连接标识
func (c *RedisCache) SetUserOffline(ctx context.Context, userID, connID string) error {
	if err := c.client.SRem(ctx, connectionsKey(userID), connID).Err(); err != nil {
		return err
	}

	remaining, err := c.client.SCard(ctx, connectionsKey(userID)).Result()
	if err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}

	pipe := c.client.TxPipeline()
	pipe.SRem(ctx, onlineUsersKey, userID)
	pipe.Del(ctx, heartbeatKey(userID), connectionsKey(userID))
	_, err = pipe.Exec(ctx)
	return err
}

// UpdateHeartbeat 刷新用户心跳
func (c *RedisCache) UpdateHeartbeat(ctx context.Context, userID string) error {
	return c.client.Set(ctx, heartbeatKey(userID), time.Now().Unix(), HeartbeatTTL).Err()
}

// IsUserOnline 检查用户是否在线
// 心跳过期的用户即使仍在集合中也视为离线
func (c *RedisCache) IsUserOnline(ctx context.Context, userID string) (bool, error) {
	_, err := c.client.Get(ctx, heartbeatKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// OnlineUsers 列出在线用户
func (c *RedisCache) OnlineUsers(ctx context.Context) ([]string, error) {
	return c.client.SMembers(ctx, onlineUsersKey).Result()
}
