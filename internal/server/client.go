package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	proto "cryptsignal-chat/internal/websocket"
)

// 连接配置常量
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // 必须小于 pongWait
	maxMessageSize = 64 * 1024
	pendingLimit   = 16 // 每个连接排队等待回复的消息数
)

// 协议错误提示
const (
	errInitRequired   = "Connection not initialized. Send an init message first."
	errUserIDRequired = "init requires a userId"
	errEmptyMessage   = "Message text is required"
	errInvalidFrame   = "Invalid message format"
	errTooManyPending = "Too many pending messages"
)

// request 一条待回复的用户消息
type request struct {
	text           string
	conversationID int64
}

// Client 表示一个推送连接
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte // 待写出的帧
	pending chan request // 等待回复的用户消息，按到达顺序处理
	connID  string
	userID  string // init 之后才有值
	log     *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewClient 创建新的客户端
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	connID := uuid.NewString()
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 64),
		pending: make(chan request, pendingLimit),
		connID:  connID,
		log:     hub.log.With(zap.String("conn_id", connID)),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ReadPump 读取客户端帧
// 每个连接一个 ReadPump，退出时注销并关闭连接
func (c *Client) ReadPump() {
	defer func() {
		if c.userID != "" {
			c.hub.Unregister(c)
		}
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Info("read error", zap.Error(err))
			}
			return
		}

		frame, err := proto.ParseFrame(data)
		if err != nil {
			c.log.Warn("丢弃无法解析的帧", zap.Error(err))
			c.SendFrame(proto.ErrorFrame(errInvalidFrame))
			continue
		}
		c.handleFrame(frame)
	}
}

// WritePump 写出帧并定时发送 ping
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// ReplyLoop 逐条处理用户消息
// 回复前后发送 typing 帧，AI 失败时回复文本本身就是提示
func (c *Client) ReplyLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case req := <-c.pending:
			c.SendFrame(proto.TypingFrame(true))
			reply := c.hub.responder.Reply(c.ctx, req.text, c.userID)
			if c.ctx.Err() != nil {
				return
			}
			c.SendFrame(proto.TypingFrame(false))
			// 回显 conversationId，客户端据此写入发起请求的会话
			c.SendFrame(proto.Frame{Type: proto.TypeNewMessage, ConversationID: req.conversationID, Text: reply})
		}
	}
}

// SendFrame 发送一帧，缓冲区满时丢弃并记录
func (c *Client) SendFrame(f proto.Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		c.log.Error("序列化帧失败", zap.Error(err))
		return
	}

	select {
	case <-c.ctx.Done():
	case c.send <- data:
	default:
		c.log.Warn("send buffer full, dropping frame", zap.String("type", f.Type))
	}
}

// Close 关闭连接
func (c *Client) Close() {
	c.closeOnce.Do(c.cancel)
}

func (c *Client) handleFrame(f proto.Frame) {
	switch f.Type {
	case proto.TypeInit:
		if f.UserID == "" {
			c.SendFrame(proto.ErrorFrame(errUserIDRequired))
			return
		}
		if c.userID != "" {
			// 重复 init 视为心跳
			c.hub.heartbeat(c)
			return
		}
		c.userID = f.UserID
		if !c.hub.Register(c) {
			c.Close()
		}

	case proto.TypeSendMessage:
		if c.userID == "" {
			c.SendFrame(proto.ErrorFrame(errInitRequired))
			return
		}
		text := f.Text
		if text == "" {
			c.SendFrame(proto.ErrorFrame(errEmptyMessage))
			return
		}
		c.hub.heartbeat(c)
		select {
		case c.pending <- request{text: text, conversationID: f.ConversationID}:
		default:
			c.SendFrame(proto.ErrorFrame(errTooManyPending))
		}

	default:
		c.log.Info("忽略未知帧类型", zap.String("type", f.Type))
	}
}
