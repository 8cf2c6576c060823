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
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"

	"love-agent/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
	pre        []app.HandlerFunc
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{handler: handler, middleware: mw}
}

// Use 追加在内置中间件之前执行的中间件（如链路追踪），须在 Build 之前调用
func (r *Router) Use(hs ...app.HandlerFunc) {
	r.pre = append(r.pre, hs...)
}

// Build 创建 Hertz 实例并注册中间件与路由
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	opts = append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(opts...)
	h.Use(r.pre...)
	if r.middleware != nil {
		h.Use(r.middleware.Handlers()...)
	}
	r.setupRoutes(h)
	return h
}

// setupRoutes 设置路由
func (r *Router) setupRoutes(h *server.Hertz) {
	h.GET("/metrics", r.handler.Metrics)

	api := h.Group("/api")
	api.GET("/health", r.handler.HealthCheck)

	love := api.Group("/ai/love_app/chat")
	love.GET("/sync", r.handler.Chat)
	love.GET("/sse", r.handler.ChatSSE)
	love.GET("/tools", r.handler.ChatWithTools)
	love.GET("/report", r.handler.ChatWithReport)

	api.GET("/ai/manus/chat", r.handler.ManusChat)
}
