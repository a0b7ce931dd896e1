package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// 连接参数
const (
	writeWait    = 10 * time.Second    // 写超时
	pongWait     = 60 * time.Second    // 读超时
	pingInterval = (pongWait * 9) / 10 // 心跳间隔
	maxFrameSize = 512 * 1024          // 单帧上限
)

// Conn 底层连接
// ReadMessage 只由一个协程调用，WriteMessage 可并发调用
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer 建立底层连接
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// GorillaDialer 基于 gorilla/websocket 的 Dialer
type GorillaDialer struct {
	Dialer *websocket.Dialer
}

// Dial 实现 Dialer
func (d GorillaDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("连接失败: %w", err)
	}
	return newGorillaConn(conn), nil
}

// gorillaConn 为 gorilla 连接加上写锁、超时和心跳
type gorillaConn struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func newGorillaConn(conn *websocket.Conn) *gorillaConn {
	c := &gorillaConn{conn: conn, done: make(chan struct{})}

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.keepalive()
	return c
}

func (c *gorillaConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *gorillaConn) WriteMessage(data []byte) error {
	return c.write(websocket.TextMessage, data)
}

func (c *gorillaConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = c.conn.Close()
	})
	return err
}

func (c *gorillaConn) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// keepalive 定期发送 ping
func (c *gorillaConn) keepalive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
