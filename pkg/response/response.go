// Package response 提供统一的 HTTP 响应格式
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
// code: 业务状态码（0 表示成功）
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// 业务状态码
const (
	CodeSuccess              = 0
	CodeBadRequest           = 1000
	CodeNotFound             = 1003
	CodeInternalError        = 1004
	CodeConversationNotFound = 1301
	CodeUpstreamError        = 1501 // 上游 AI 服务错误
)

// Success 返回成功响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Created 返回 201 响应
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{
		Code:    CodeSuccess,
		Message: "created",
		Data:    data,
	})
}

// ErrorWithCode 返回错误响应（带业务状态码）
func ErrorWithCode(c *gin.Context, httpCode, bizCode int, message string) {
	c.JSON(httpCode, Response{
		Code:    bizCode,
		Message: message,
	})
}

// BadRequest 返回 400 错误
func BadRequest(c *gin.Context, message string) {
	ErrorWithCode(c, http.StatusBadRequest, CodeBadRequest, message)
}

// NotFound 返回 404 错误
func NotFound(c *gin.Context, bizCode int, message string) {
	ErrorWithCode(c, http.StatusNotFound, bizCode, message)
}

// InternalError 返回 500 错误
func InternalError(c *gin.Context, message string) {
	ErrorWithCode(c, http.StatusInternalServerError, CodeInternalError, message)
}
