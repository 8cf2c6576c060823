// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"

	"love-agent/internal/agent"
	loveapp "love-agent/internal/app"
	"love-agent/internal/stream"
	"love-agent/pkg/errors"
	"love-agent/pkg/log"
	"love-agent/pkg/metrics"
)

// ChatIDHeader 响应头中返回实际使用的会话 ID
const ChatIDHeader = "X-Chat-Id"

// LoveService HTTP 层依赖的应用能力
type LoveService interface {
	Chat(ctx context.Context, chatID, message string) (string, error)
	ChatStream(ctx context.Context, chatID, message string, emit stream.EmitFunc) (*loveapp.StreamResult, error)
	ChatWithReport(ctx context.Context, chatID, message string) (*loveapp.LoveReport, error)
	ChatWithTools(ctx context.Context, chatID, message string) (*agent.RunResult, error)
	RunManus(ctx context.Context, chatID, message string) *schema.StreamReader[string]
}

// Handler HTTP 处理器
type Handler struct {
	svc     LoveService
	logger  *log.Logger
	timeout time.Duration // 非流式接口的处理超时，0 表示不限
}

// NewHandler 创建新的 HTTP 处理器
func NewHandler(svc LoveService, logger *log.Logger, timeout time.Duration) *Handler {
	return &Handler{svc: svc, logger: log.OrNop(logger), timeout: timeout}
}

// chatParams 读取 message 与 chatId；chatId 为空时生成新的会话 ID
func (h *Handler) chatParams(c *app.RequestContext) (message, chatID string, ok bool) {
	message = strings.TrimSpace(c.Query("message"))
	if message == "" {
		c.JSON(http.StatusBadRequest, utils.H{"error": "message 不能为空"})
		return "", "", false
	}
	chatID = strings.TrimSpace(c.Query("chatId"))
	if chatID == "" {
		chatID = loveapp.NewChatID()
	}
	c.Response.Header.Set(ChatIDHeader, chatID)
	return message, chatID, true
}

func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}

// statusOf 错误分类到 HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, errors.ErrConversationBusy):
		return http.StatusConflict
	case errors.Is(err, errors.ErrModelInvocation), errors.Is(err, errors.ErrInvalidArg):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(http.StatusOK, utils.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "love-agent",
	})
}

// Metrics Prometheus 文本格式
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var b strings.Builder
	if err := metrics.WritePrometheus(&b); err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

// Chat 同步对话
func (h *Handler) Chat(ctx context.Context, c *app.RequestContext) {
	message, chatID, ok := h.chatParams(c)
	if !ok {
		return
	}
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	reply, err := h.svc.Chat(ctx, chatID, message)
	if err != nil {
		h.logger.Error("对话失败", "chat_id", chatID, "error", err)
		c.JSON(statusOf(err), utils.H{"chat_id": chatID, "content": reply, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, utils.H{"chat_id": chatID, "content": reply})
}

// ChatSSE 流式对话；每个增量一个 data 事件，失败时以 error 事件结束
func (h *Handler) ChatSSE(ctx context.Context, c *app.RequestContext) {
	message, chatID, ok := h.chatParams(c)
	if !ok {
		return
	}
	w := startSSE(c)
	go func() {
		defer w.Close()
		res, err := h.svc.ChatStream(ctx, chatID, message, w.Data)
		switch {
		case err == nil:
		case errors.Is(err, stream.ErrConsumerClosed):
			h.logger.Info("SSE 客户端已断开", "chat_id", chatID)
		case res != nil && res.Text != "":
			w.Event("error", res.Text)
		default:
			w.Event("error", err.Error())
		}
	}()
}

// ChatWithTools 可调用工具的对话
func (h *Handler) ChatWithTools(ctx context.Context, c *app.RequestContext) {
	message, chatID, ok := h.chatParams(c)
	if !ok {
		return
	}
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	res, err := h.svc.ChatWithTools(ctx, chatID, message)
	if err != nil {
		h.logger.Warn("工具对话未正常结束", "chat_id", chatID, "error", err)
		body := utils.H{"chat_id": chatID, "error": err.Error()}
		if res != nil {
			body["final"] = res.Final
			body["steps"] = res.Steps
			body["state"] = res.State
		}
		status := statusOf(err)
		if errors.Is(err, errors.ErrStepLimitExceeded) {
			status = http.StatusOK
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ChatWithReport 恋爱报告
func (h *Handler) ChatWithReport(ctx context.Context, c *app.RequestContext) {
	message, chatID, ok := h.chatParams(c)
	if !ok {
		return
	}
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	report, err := h.svc.ChatWithReport(ctx, chatID, message)
	if err != nil {
		h.logger.Error("生成恋爱报告失败", "chat_id", chatID, "error", err)
		c.JSON(statusOf(err), utils.H{"chat_id": chatID, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// ManusChat 通用 Agent，按步推送 SSE
func (h *Handler) ManusChat(ctx context.Context, c *app.RequestContext) {
	message, chatID, ok := h.chatParams(c)
	if !ok {
		return
	}
	sr := h.svc.RunManus(ctx, chatID, message)
	w := startSSE(c)
	go func() {
		defer w.Close()
		defer sr.Close()
		for {
			step, err := sr.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				w.Event("error", err.Error())
				return
			}
			if !w.Data(step) {
				h.logger.Info("SSE 客户端已断开", "chat_id", chatID)
				return
			}
		}
	}()
}
