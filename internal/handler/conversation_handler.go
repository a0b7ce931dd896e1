// Package handler 提供 HTTP 请求处理器
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cryptsignal-chat/internal/api"
	"cryptsignal-chat/internal/repository"
	"cryptsignal-chat/internal/service"
	"cryptsignal-chat/pkg/response"
)

// ConversationHandler 会话请求处理器
type ConversationHandler struct {
	conversationService *service.ConversationService
}

// NewConversationHandler 创建 ConversationHandler 实例
func NewConversationHandler(conversationService *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

// CreateConversationRequest 创建会话请求
type CreateConversationRequest struct {
	Title string `json:"title"`
}

// PostMessageRequest 发送消息请求
type PostMessageRequest struct {
	Content string `json:"content" binding:"required"`
	UserID  string `json:"userId"`
}

// ListConversations 获取会话列表
// @Router /api/conversations [get]
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	convs, err := h.conversationService.List(c.Request.Context())
	if err != nil {
		response.InternalError(c, "获取会话列表失败")
		return
	}
	response.Success(c, convs)
}

// CreateConversation 创建会话
// @Router /api/conversations [post]
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	var req CreateConversationRequest
	// 请求体可以为空
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "无效的会话数据")
			return
		}
	}

	conv, err := h.conversationService.Create(c.Request.Context(), req.Title)
	if err != nil {
		response.InternalError(c, "创建会话失败")
		return
	}
	response.Created(c, conv)
}

// DeleteConversation 删除会话及其消息
// @Router /api/conversations/{id} [delete]
func (h *ConversationHandler) DeleteConversation(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	if err := h.conversationService.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err, "删除会话失败")
		return
	}
	response.Success(c, gin.H{"success": true})
}

// ListMessages 获取会话消息
// @Router /api/conversations/{id}/messages [get]
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	msgs, err := h.conversationService.Messages(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "获取消息失败")
		return
	}
	response.Success(c, msgs)
}

// PostMessage 发送消息并获取 AI 回复
// @Router /api/conversations/{id}/messages [post]
func (h *ConversationHandler) PostMessage(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "消息内容不能为空")
		return
	}

	ex, err := h.conversationService.PostMessage(c.Request.Context(), id, req.Content, req.UserID)
	if err != nil {
		writeError(c, err, "处理消息失败")
		return
	}
	response.Success(c, ex)
}

// ClearMessages 清空会话消息
// @Router /api/conversations/{id}/messages [delete]
func (h *ConversationHandler) ClearMessages(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	if err := h.conversationService.Clear(c.Request.Context(), id); err != nil {
		writeError(c, err, "清空消息失败")
		return
	}
	response.Success(c, gin.H{"success": true})
}

// Generate 直接请求 AI 回复，供推送通道不可用的客户端使用
// 响应格式与上游生成接口一致: {"response": "..."}
// @Router /api/generate [post]
func (h *ConversationHandler) Generate(c *gin.Context) {
	var req api.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Query == "" {
		response.BadRequest(c, "query 不能为空")
		return
	}

	reply := h.conversationService.Reply(c.Request.Context(), req.Query, req.UserID)
	c.JSON(http.StatusOK, api.GenerateResponse{Response: reply})
}

// RegisterRoutes 注册会话路由
func (h *ConversationHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/generate", h.Generate)

	convs := r.Group("/conversations")
	{
		convs.GET("", h.ListConversations)
		convs.POST("", h.CreateConversation)
		convs.DELETE("/:id", h.DeleteConversation)
		convs.GET("/:id/messages", h.ListMessages)
		convs.POST("/:id/messages", h.PostMessage)
		convs.DELETE("/:id/messages", h.ClearMessages)
	}
}

func conversationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "无效的会话ID")
		return 0, false
	}
	return id, true
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrConversationNotFound):
		response.NotFound(c, response.CodeConversationNotFound, "会话不存在")
	case errors.Is(err, service.ErrEmptyContent):
		response.BadRequest(c, "消息内容不能为空")
	default:
		_ = c.Error(err)
		response.InternalError(c, fallback)
	}
}
