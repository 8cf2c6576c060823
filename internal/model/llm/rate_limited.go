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
	"errors"
	"io"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"love-agent/pkg/metrics"
)

// RateLimitedChatModel 在调用前后执行限流，并按响应中的 usage 统计 token
type RateLimitedChatModel struct {
	inner    model.ToolCallingChatModel
	provider string
	limiter  *RateLimiter
}

var _ model.ToolCallingChatModel = (*RateLimitedChatModel)(nil)

// NewRateLimitedChatModel limiter 为 nil 时只统计 token
func NewRateLimitedChatModel(inner model.ToolCallingChatModel, provider string, limiter *RateLimiter) *RateLimitedChatModel {
	return &RateLimitedChatModel{inner: inner, provider: provider, limiter: limiter}
}

func (m *RateLimitedChatModel) acquire(ctx context.Context, input []*schema.Message) error {
	if m.limiter == nil {
		return nil
	}
	start := time.Now()
	if err := m.limiter.Wait(ctx, m.provider, estimateTokens(input)); err != nil {
		return err
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		metrics.RateLimitWaitSeconds.WithLabelValues(m.provider).Observe(waited.Seconds())
	}
	return nil
}

func (m *RateLimitedChatModel) release() {
	if m.limiter != nil {
		m.limiter.Release(m.provider)
	}
}

// Generate 实现 model.BaseChatModel
func (m *RateLimitedChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if err := m.acquire(ctx, input); err != nil {
		return nil, err
	}
	defer m.release()

	out, err := m.inner.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	recordUsage(out)
	return out, nil
}

// Stream 并发槽位在流读完或被关闭后才释放
func (m *RateLimitedChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if err := m.acquire(ctx, input); err != nil {
		return nil, err
	}
	src, err := m.inner.Stream(ctx, input, opts...)
	if err != nil {
		m.release()
		return nil, err
	}

	sr, sw := schema.Pipe[*schema.Message](8)
	go func() {
		defer m.release()
		defer sw.Close()
		defer src.Close()
		for {
			chunk, err := src.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				sw.Send(nil, err)
				return
			}
			recordUsage(chunk)
			if closed := sw.Send(chunk, nil); closed {
				return
			}
		}
	}()
	return sr, nil
}

// WithTools 返回绑定工具后的新实例，限流器共享
func (m *RateLimitedChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	inner, err := m.inner.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &RateLimitedChatModel{inner: inner, provider: m.provider, limiter: m.limiter}, nil
}

func recordUsage(msg *schema.Message) {
	if msg == nil || msg.ResponseMeta == nil || msg.ResponseMeta.Usage == nil {
		return
	}
	u := msg.ResponseMeta.Usage
	if u.PromptTokens > 0 {
		metrics.LLMTokensTotal.WithLabelValues("input").Add(float64(u.PromptTokens))
	}
	if u.CompletionTokens > 0 {
		metrics.LLMTokensTotal.WithLabelValues("output").Add(float64(u.CompletionTokens))
	}
}

// estimateTokens 粗略估算输入 token（中文约 1 字 1 token）
func estimateTokens(input []*schema.Message) int {
	n := 0
	for _, m := range input {
		if m != nil {
			n += len([]rune(m.Content))
		}
	}
	if n < 1 {
		n = 1
	}
	return n
}
