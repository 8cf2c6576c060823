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

package llm

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"love-agent/pkg/config"
)

// LimitConfig 单个 Provider 的限流配置
type LimitConfig struct {
	TokensPerMinute   int
	RequestsPerMinute float64
	MaxConcurrent     int
}

// DefaultLimit 未单独配置的 Provider 使用的限额
var DefaultLimit = LimitConfig{
	TokensPerMinute:   90000,
	RequestsPerMinute: 3500,
	MaxConcurrent:     50,
}

// RateLimiter 按 Provider 维度的 token 预算、请求频率与并发控制
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*providerLimiter
	defaults LimitConfig
}

type providerLimiter struct {
	requests *rate.Limiter
	tokens   *rate.Limiter
	slots    chan struct{}
}

// NewRateLimiter 创建限流器；configs 的 key 为 provider 名
func NewRateLimiter(configs map[string]LimitConfig, defaults *LimitConfig) *RateLimiter {
	l := &RateLimiter{limiters: make(map[string]*providerLimiter), defaults: DefaultLimit}
	if defaults != nil {
		l.defaults = *defaults
	}
	for provider, c := range configs {
		l.limiters[provider] = newProviderLimiter(c)
	}
	return l
}

// LimitsFromConfig 转换应用配置中的 rate_limits.llm
func LimitsFromConfig(c config.RateLimitsConfig) map[string]LimitConfig {
	out := make(map[string]LimitConfig, len(c.LLM))
	for provider, lc := range c.LLM {
		out[provider] = LimitConfig{
			TokensPerMinute:   lc.TokensPerMinute,
			RequestsPerMinute: lc.RequestsPerMinute,
			MaxConcurrent:     lc.MaxConcurrent,
		}
	}
	return out
}

func newProviderLimiter(c LimitConfig) *providerLimiter {
	pl := &providerLimiter{}
	// burst 取 2 秒的配额
	if c.RequestsPerMinute > 0 {
		burst := int(c.RequestsPerMinute / 30)
		if burst < 1 {
			burst = 1
		}
		pl.requests = rate.NewLimiter(rate.Limit(c.RequestsPerMinute/60), burst)
	}
	if c.TokensPerMinute > 0 {
		burst := c.TokensPerMinute / 30
		if burst < 1 {
			burst = 1
		}
		pl.tokens = rate.NewLimiter(rate.Limit(float64(c.TokensPerMinute)/60), burst)
	}
	if c.MaxConcurrent > 0 {
		pl.slots = make(chan struct{}, c.MaxConcurrent)
	}
	return pl
}

func (l *RateLimiter) get(provider string) *providerLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl, ok := l.limiters[provider]
	if !ok {
		pl = newProviderLimiter(l.defaults)
		l.limiters[provider] = pl
	}
	return pl
}

// Wait 阻塞直到获得执行许可；成功后必须调用 Release
func (l *RateLimiter) Wait(ctx context.Context, provider string, estimatedTokens int) error {
	pl := l.get(provider)
	if pl.requests != nil {
		if err := pl.requests.Wait(ctx); err != nil {
			return fmt.Errorf("request rate limit wait failed: %w", err)
		}
	}
	if pl.tokens != nil && estimatedTokens > 0 {
		n := estimatedTokens
		// WaitN 要求 n 不超过 burst
		if b := pl.tokens.Burst(); n > b {
			n = b
		}
		if err := pl.tokens.WaitN(ctx, n); err != nil {
			return fmt.Errorf("token budget wait failed: %w", err)
		}
	}
	if pl.slots != nil {
		select {
		case pl.slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Release 释放并发槽位
func (l *RateLimiter) Release(provider string) {
	pl := l.get(provider)
	if pl.slots == nil {
		return
	}
	select {
	case <-pl.slots:
	default:
	}
}

// InFlight 当前占用的并发槽位数
func (l *RateLimiter) InFlight(provider string) int {
	pl := l.get(provider)
	return len(pl.slots)
}
