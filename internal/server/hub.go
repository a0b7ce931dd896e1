// Package server 提供服务端推送通道
// 客户端先发送 init 握手，之后的 send_message 按到达顺序逐条回复
package server

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"cryptsignal-chat/internal/logger"
)

// Presence 在线状态存储，可以为 nil
type Presence interface {
	SetUserOnline(ctx context.Context, userID, connID string) error
	SetUserOffline(ctx context.Context, userID, connID string) error
	UpdateHeartbeat(ctx context.Context, userID string) error
}

// Responder 生成助手回复，失败时返回可展示的回复文本
type Responder interface {
	Reply(ctx context.Context, content, userID string) string
}

// Hub 是推送连接的中心管理器
// 负责：
// 1. 管理已握手的客户端连接
// 2. 同步在线状态
type Hub struct {
	// 用户到连接的映射：userID -> connID -> *Client
	// 一个用户可能同时打开多个客户端
	clients map[string]map[string]*Client

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex

	responder Responder
	presence  Presence
	log       *zap.Logger
}

// NewHub 创建 Hub 实例
func NewHub(responder Responder, presence Presence, log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		responder:  responder,
		presence:   presence,
		log:        logger.OrNop(log).With(zap.String("component", "hub")),
	}
}

// Run 启动 Hub 的主循环，ctx 结束时关闭所有连接
// 应该在单独的 goroutine 中运行
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// Register 注册已握手的客户端，Hub 已停止时返回 false
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// IsUserConnected 用户是否有已握手的连接
func (h *Hub) IsUserConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// ConnectionCount 已握手的连接数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.clients {
		n += len(conns)
	}
	return n
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	conns, ok := h.clients[client.userID]
	if !ok {
		conns = make(map[string]*Client)
		h.clients[client.userID] = conns
	}
	conns[client.connID] = client
	h.mu.Unlock()

	if h.presence != nil {
		if err := h.presence.SetUserOnline(context.Background(), client.userID, client.connID); err != nil {
			h.log.Warn("设置在线状态失败", zap.String("user_id", client.userID), zap.Error(err))
		}
	}
	h.log.Info("client registered", zap.String("user_id", client.userID), zap.String("conn_id", client.connID))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	conns := h.clients[client.userID]
	_, exists := conns[client.connID]
	if exists {
		delete(conns, client.connID)
		if len(conns) == 0 {
			delete(h.clients, client.userID)
		}
	}
	h.mu.Unlock()

	if exists && h.presence != nil {
		if err := h.presence.SetUserOffline(context.Background(), client.userID, client.connID); err != nil {
			h.log.Warn("设置离线状态失败", zap.String("user_id", client.userID), zap.Error(err))
		}
	}
	if exists {
		h.log.Info("client unregistered", zap.String("user_id", client.userID), zap.String("conn_id", client.connID))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conns := range h.clients {
		for _, c := range conns {
			c.Close()
		}
	}
	h.clients = make(map[string]map[string]*Client)
}

func (h *Hub) heartbeat(client *Client) {
	if h.presence == nil {
		return
	}
	if err := h.presence.UpdateHeartbeat(context.Background(), client.userID); err != nil {
		h.log.Warn("更新心跳失败", zap.String("user_id", client.userID), zap.Error(err))
	}
}
