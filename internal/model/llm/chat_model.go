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

// Package llm 模型创建、限流与 token 统计
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"love-agent/pkg/config"
)

// DefaultTimeout 单次模型请求超时
const DefaultTimeout = 120 * time.Second

// NewChatModelFromConfig 根据 model.defaults.llm（provider.model_key）创建 OpenAI 兼容的 ChatModel，
// 返回 provider 名供限流使用。apiKey 已由调用方解析完 secret 引用。
func NewChatModelFromConfig(ctx context.Context, cfg config.ModelConfig) (model.ToolCallingChatModel, string, error) {
	if cfg.Defaults.LLM == "" {
		return nil, "", fmt.Errorf("model.defaults.llm 未配置")
	}
	provider, modelKey, err := ParseDefaultKey(cfg.Defaults.LLM)
	if err != nil {
		return nil, "", err
	}
	pc, ok := cfg.LLM.Providers[provider]
	if !ok {
		return nil, "", fmt.Errorf("LLM provider %q 未配置", provider)
	}
	mi, ok := pc.Models[modelKey]
	if !ok {
		return nil, "", fmt.Errorf("LLM model %q 未在 provider %q 中配置", modelKey, provider)
	}
	if pc.APIKey == "" {
		return nil, "", fmt.Errorf("LLM provider %q 的 api_key 未配置", provider)
	}

	mc := &openai.ChatModelConfig{
		APIKey:  pc.APIKey,
		BaseURL: pc.BaseURL,
		Model:   mi.Name,
		Timeout: DefaultTimeout,
	}
	if mi.Temperature > 0 {
		t := float32(mi.Temperature)
		mc.Temperature = &t
	}
	if mi.MaxTokens > 0 {
		n := mi.MaxTokens
		mc.MaxTokens = &n
	}
	cm, err := openai.NewChatModel(ctx, mc)
	if err != nil {
		return nil, "", fmt.Errorf("创建 OpenAI ChatModel failed: %w", err)
	}
	return cm, provider, nil
}

// ParseDefaultKey 解析 provider.model_key
func ParseDefaultKey(key string) (provider, modelKey string, err error) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("default key 格式应为 provider.model_key，如 dashscope.qwen_plus，当前: %q", key)
	}
	return parts[0], parts[1], nil
}
