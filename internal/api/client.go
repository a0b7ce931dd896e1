// Package api 封装对 AI 生成接口的 HTTP 调用
// 推送通道不可用时作为回退通道使用
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"cryptsignal-chat/internal/logger"
)

// 回复文本，失败时代替助手回复展示
const (
	ReplyGenericError = "Sorry, I encountered an error. Please try again."
	ReplyServiceError = "Sorry, the AI service returned an error. Please try again later."
	ReplyUnreachable  = "Sorry, I'm having trouble connecting to my AI services right now."
	ReplyEmpty        = "Received an empty response from the AI."
)

// 调用错误
var (
	ErrUnreachable   = errors.New("AI 服务不可达")
	ErrStatus        = errors.New("AI 服务返回错误状态")
	ErrEmptyResponse = errors.New("AI 服务返回空回复")
)

// DefaultTimeout 单次生成的超时时间
const DefaultTimeout = 60 * time.Second

// GenerateRequest 生成请求
type GenerateRequest struct {
	Query     string `json:"query"`
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// GenerateResponse 生成响应
type GenerateResponse struct {
	Response string `json:"response"`
}

// Client AI 接口客户端
// endpoint: 例如 https://host/api/generate
type Client struct {
	endpoint   string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient 创建 API 客户端
func NewClient(endpoint string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.OrNop(log).With(zap.String("component", "api")),
	}
}

// Generate 请求 AI 回复
// 非 2xx、响应无法解析或回复为空都返回错误
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("序列化请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: %d %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result GenerateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	if strings.TrimSpace(result.Response) == "" {
		return "", ErrEmptyResponse
	}
	return result.Response, nil
}

// Ask 请求 AI 回复，任何失败都转换为可直接展示的回复文本
func (c *Client) Ask(ctx context.Context, req GenerateRequest) string {
	reply, err := c.Generate(ctx, req)
	if err == nil {
		return reply
	}

	c.log.Warn("AI 生成失败", zap.Error(err))
	return FallbackReply(err)
}

// FallbackReply 将生成错误转换为回复文本
func FallbackReply(err error) string {
	switch {
	case errors.Is(err, ErrEmptyResponse):
		return ReplyEmpty
	case errors.Is(err, ErrStatus):
		return ReplyServiceError
	case errors.Is(err, ErrUnreachable):
		return ReplyUnreachable
	default:
		return ReplyGenericError
	}
}
