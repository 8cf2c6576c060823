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

package app

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"

	"love-agent/internal/agent"
	"love-agent/internal/agent/memory"
	"love-agent/internal/agent/tools"
	"love-agent/internal/model/llm"
	"love-agent/internal/stream"
	"love-agent/internal/tool/builtin"
	"love-agent/pkg/config"
	"love-agent/pkg/log"
	"love-agent/pkg/secrets"
)

// Bootstrap 统一初始化：供 api、cli 与 devops 复用
type Bootstrap struct {
	Config   *config.Config
	Logger   *log.Logger
	Secrets  secrets.Store
	Store    memory.Store
	Model    model.ToolCallingChatModel
	Registry *tools.Registry
	App      *LoveApp
}

// NewBootstrap 根据配置创建 Bootstrap（日志、Secret、会话存储、模型、工具与应用）
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	logger, secretStore, err := newBase(cfg)
	if err != nil {
		return nil, err
	}

	modelCfg := cfg.Model
	modelCfg.LLM.Providers = make(map[string]config.ProviderConfig, len(cfg.Model.LLM.Providers))
	for name, pc := range cfg.Model.LLM.Providers {
		if pc.APIKey, err = secrets.Resolve(ctx, secretStore, pc.APIKey); err != nil {
			return nil, fmt.Errorf("provider %s api_key: %w", name, err)
		}
		modelCfg.LLM.Providers[name] = pc
	}
	chatModel, provider, err := llm.NewChatModelFromConfig(ctx, modelCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化模型失败: %w", err)
	}
	limiter := llm.NewRateLimiter(llm.LimitsFromConfig(cfg.RateLimits), nil)
	wrapped := llm.NewRateLimitedChatModel(chatModel, provider, limiter)

	return assemble(ctx, cfg, logger, secretStore, wrapped)
}

// NewBootstrapWithModel 使用外部提供的模型装配（测试或自定义模型）
func NewBootstrapWithModel(ctx context.Context, cfg *config.Config, chatModel model.ToolCallingChatModel) (*Bootstrap, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	logger, secretStore, err := newBase(cfg)
	if err != nil {
		return nil, err
	}
	return assemble(ctx, cfg, logger, secretStore, chatModel)
}

func newBase(cfg *config.Config) (*log.Logger, secrets.Store, error) {
	logger, err := log.NewLogger(&log.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		return nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	secretStore, err := secrets.NewStore(secrets.Config{
		Provider:   cfg.Secrets.Provider,
		Address:    cfg.Secrets.Address,
		Token:      cfg.Secrets.Token,
		PathPrefix: cfg.Secrets.PathPrefix,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("初始化 Secret Store 失败: %w", err)
	}
	return logger, secretStore, nil
}

func assemble(ctx context.Context, cfg *config.Config, logger *log.Logger, secretStore secrets.Store, chatModel model.ToolCallingChatModel) (*Bootstrap, error) {
	store, err := memory.NewStore(ctx, memory.Config{
		Type:     cfg.Memory.Type,
		DSN:      cfg.Memory.DSN,
		Addr:     cfg.Memory.Addr,
		Password: cfg.Memory.Password,
		DB:       cfg.Memory.DB,
		TTL:      cfg.Memory.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化会话存储失败: %w", err)
	}

	registry := tools.NewRegistry()
	toolOpts, err := builtinOptions(ctx, cfg, secretStore, logger)
	if err != nil {
		return nil, err
	}
	if err := builtin.RegisterBuiltin(ctx, registry, toolOpts); err != nil {
		return nil, fmt.Errorf("注册内置工具失败: %w", err)
	}

	loveApp, err := NewLoveApp(ctx, Options{
		Model:         chatModel,
		Store:         store,
		Registry:      registry,
		Window:        cfg.Memory.Window,
		HistoryBudget: cfg.Agent.HistoryBudget,
		Stream:        stream.FromConfig(cfg.Stream),
		Manus: agent.Config{
			Name:           cfg.Agent.Name,
			SystemPrompt:   cfg.Agent.SystemPrompt,
			NextStepPrompt: cfg.Agent.NextStepPrompt,
			MaxSteps:       cfg.Agent.MaxSteps,
			HistoryBudget:  cfg.Agent.HistoryBudget,
			TerminateTool:  cfg.Agent.TerminateTool,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("应用初始化完成", "memory", cfg.Memory.Type, "tools", registry.Names())

	return &Bootstrap{
		Config:   cfg,
		Logger:   logger,
		Secrets:  secretStore,
		Store:    store,
		Model:    chatModel,
		Registry: registry,
		App:      loveApp,
	}, nil
}

// builtinOptions 按配置启用工具，凭据支持 secret:<key> 引用
func builtinOptions(ctx context.Context, cfg *config.Config, secretStore secrets.Store, logger *log.Logger) (builtin.Options, error) {
	opts := builtin.Options{TerminateTool: cfg.Agent.TerminateTool, Logger: logger}
	if e := cfg.Tools.Email; e.Enable {
		code, err := secrets.Resolve(ctx, secretStore, e.AuthCode)
		if err != nil {
			return opts, fmt.Errorf("tools.email.auth_code: %w", err)
		}
		opts.Email = &builtin.EmailConfig{Host: e.Host, Port: e.Port, StartTLS: e.StartTLS, From: e.From, AuthCode: code}
	}
	if is := cfg.Tools.ImageSearch; is.Enable {
		key, err := secrets.Resolve(ctx, secretStore, is.APIKey)
		if err != nil {
			return opts, fmt.Errorf("tools.image_search.api_key: %w", err)
		}
		opts.ImageSearch = &builtin.ImageSearchConfig{BaseURL: is.BaseURL, APIKey: key, PerPage: is.PerPage}
	}
	return opts, nil
}

// Close 释放会话存储连接
func (b *Bootstrap) Close() error {
	if c, ok := b.Store.(memory.Closer); ok {
		return c.Close()
	}
	return nil
}
