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

// Package middleware Hertz 中间件：CORS 与访问日志
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"

	"love-agent/pkg/config"
	"love-agent/pkg/log"
	"love-agent/pkg/metrics"
)

// Middleware 中间件管理器
type Middleware struct {
	cors   config.CORSConfig
	logger *log.Logger
}

// NewMiddleware 创建新的中间件管理器
func NewMiddleware(cors config.CORSConfig, logger *log.Logger) *Middleware {
	return &Middleware{cors: cors, logger: log.OrNop(logger)}
}

// Handlers 按顺序返回需要全局挂载的中间件
func (m *Middleware) Handlers() []app.HandlerFunc {
	hs := []app.HandlerFunc{m.AccessLog()}
	if m.cors.Enable {
		hs = append(hs, m.CORS())
	}
	return hs
}

// allowOrigin 未配置时放行全部来源
func (m *Middleware) allowOrigin(origin string) string {
	if len(m.cors.AllowOrigins) == 0 {
		return "*"
	}
	for _, o := range m.cors.AllowOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// CORS CORS 中间件
func (m *Middleware) CORS() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		origin := m.allowOrigin(string(c.GetHeader("Origin")))
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Cache-Control")
			c.Header("Access-Control-Expose-Headers", "X-Chat-Id")
			c.Header("Access-Control-Max-Age", "86400")
		}
		if string(c.Method()) == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next(ctx)
	}
}

// AccessLog 请求日志与 HTTP 指标
func (m *Middleware) AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Response.StatusCode()
		latency := time.Since(start)
		metrics.HTTPRequestsTotal.WithLabelValues(string(c.Method()), route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(string(c.Method()), route).Observe(latency.Seconds())
		m.logger.Info("HTTP 请求",
			"method", string(c.Method()),
			"path", string(c.Path()),
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}
