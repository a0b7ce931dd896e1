package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler 处理推送通道的升级请求
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler 创建 Handler
// allowedOrigins 为空或包含 "*" 时不检查来源
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || allowed[origin]
			},
		},
	}
}

// HandleWS 升级为推送连接
// 路由: GET /ws
func (h *Handler) HandleWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.log.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn)
	go client.WritePump()
	go client.ReplyLoop()
	go client.ReadPump()

	h.hub.log.Debug("push connection opened", zap.String("conn_id", client.connID))
}

// RegisterRoutes 注册推送通道路由
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws", h.HandleWS)
}
