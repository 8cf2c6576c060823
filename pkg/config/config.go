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

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// HistoryCeiling 模型输入长度的硬上限（字符），预算必须严格小于该值
const HistoryCeiling = 1000000

// 默认值
const (
	DefaultHistoryBudget  = 800000
	DefaultMaxSteps       = 10
	DefaultTerminateTool  = "doTerminate"
	DefaultMemoryWindow   = 20
	DefaultQuestionWindow = 20
	DefaultQuestionTail   = 10
	DefaultMaxChars       = 200
)

// DefaultWaitPhrases 期待用户回复的表达
var DefaultWaitPhrases = []string{"等你回复", "等待你的回复", "等你回答", "等待您的回复"}

// DefaultIdentityPhrases 身份介绍表达（带问候的变体在前，保证问候语一起移除）
var DefaultIdentityPhrases = []string{
	"你好，我是恋爱心理顾问",
	"你好，我是恋爱顾问",
	"你好，我是心理顾问",
	"我是恋爱心理顾问",
	"我是恋爱顾问",
	"我是心理顾问",
}

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Stream     StreamConfig     `mapstructure:"stream"`
	Memory     MemoryConfig     `mapstructure:"memory"`
	Model      ModelConfig      `mapstructure:"model"`
	Tools      ToolsConfig      `mapstructure:"tools"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port    int        `mapstructure:"port"`
	Host    string     `mapstructure:"host"`
	Timeout string     `mapstructure:"timeout"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// AgentConfig 工具调用 Agent（think/act 循环）配置
type AgentConfig struct {
	Name           string `mapstructure:"name"`
	MaxSteps       int    `mapstructure:"max_steps"`
	HistoryBudget  int    `mapstructure:"history_budget"`   // 历史权重预算（字符），需 < HistoryCeiling
	SystemPrompt   string `mapstructure:"system_prompt"`    // 空则使用内置提示词
	NextStepPrompt string `mapstructure:"next_step_prompt"` // 每个会话只注入一次
	TerminateTool  string `mapstructure:"terminate_tool"`
}

// StreamConfig 流式输出终止与身份过滤配置
type StreamConfig struct {
	QuestionWindow  int      `mapstructure:"question_window"` // 问号距末尾的最大字数
	QuestionTail    int      `mapstructure:"question_tail"`   // 问号后允许的最大（不含）有效字数
	MaxChars        int      `mapstructure:"max_chars"`
	WaitPhrases     []string `mapstructure:"wait_phrases"`
	IdentityPhrases []string `mapstructure:"identity_phrases"`
}

// MemoryConfig 对话记忆存储配置
type MemoryConfig struct {
	Type     string `mapstructure:"type"`     // memory | redis | postgres | sqlite
	DSN      string `mapstructure:"dsn"`      // postgres 连接串或 sqlite 文件路径
	Addr     string `mapstructure:"addr"`     // redis 地址
	Password string `mapstructure:"password"` // redis 密码
	DB       int    `mapstructure:"db"`       // redis DB 编号
	TTL      string `mapstructure:"ttl"`      // redis 会话过期时间，如 "72h"，空则不过期
	Window   int    `mapstructure:"window"`   // 普通对话保留的最近消息条数
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
}

// LLMConfig LLM 模型配置
type LLMConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig 模型提供商配置
type ProviderConfig struct {
	APIKey  string               `mapstructure:"api_key"`
	BaseURL string               `mapstructure:"base_url"`
	Models  map[string]ModelInfo `mapstructure:"models"`
}

// ModelInfo 模型信息
type ModelInfo struct {
	Name        string  `mapstructure:"name"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// DefaultsConfig 默认模型配置，格式 provider.model_key
type DefaultsConfig struct {
	LLM string `mapstructure:"llm"`
}

// ToolsConfig 内置工具配置
type ToolsConfig struct {
	Email       EmailConfig       `mapstructure:"email"`
	ImageSearch ImageSearchConfig `mapstructure:"image_search"`
}

// EmailConfig SMTP 发信配置；AuthCode 支持 secret:<key> 引用
type EmailConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	StartTLS bool   `mapstructure:"starttls"`
	From     string `mapstructure:"from"`
	AuthCode string `mapstructure:"auth_code"`
}

// ImageSearchConfig 图片搜索配置；APIKey 支持 secret:<key> 引用
type ImageSearchConfig struct {
	Enable  bool   `mapstructure:"enable"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	PerPage int    `mapstructure:"per_page"`
}

// SecretsConfig Secret 存储配置
type SecretsConfig struct {
	Provider   string `mapstructure:"provider"` // memory | env | vault
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	PathPrefix string `mapstructure:"path_prefix"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// RateLimitsConfig 限流配置
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadAPIConfig 加载 API 配置；LOVE_AGENT_CONFIG 可覆盖默认路径 configs/api.yaml
func LoadAPIConfig() (*Config, error) {
	path := "configs/api.yaml"
	if p := os.Getenv("LOVE_AGENT_CONFIG"); p != "" {
		path = p
	}
	return LoadConfig(path)
}

// expandEnv 解析 ${VAR} 形式的值，环境变量为空时保留原值
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "$") {
		return s
	}
	envVar := strings.TrimPrefix(strings.TrimSuffix(s, "}"), "${")
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return s
}

// replaceEnvVars 替换配置中的环境变量
func replaceEnvVars(config *Config) {
	for provider, providerConfig := range config.Model.LLM.Providers {
		providerConfig.APIKey = expandEnv(providerConfig.APIKey)
		config.Model.LLM.Providers[provider] = providerConfig
	}
	config.Tools.Email.AuthCode = expandEnv(config.Tools.Email.AuthCode)
	config.Tools.ImageSearch.APIKey = expandEnv(config.Tools.ImageSearch.APIKey)
	config.Secrets.Token = expandEnv(config.Secrets.Token)
}

// ApplyDefaults 为未配置的字段填充默认值
func (c *Config) ApplyDefaults() {
	if c.Agent.MaxSteps <= 0 {
		c.Agent.MaxSteps = DefaultMaxSteps
	}
	if c.Agent.HistoryBudget <= 0 {
		c.Agent.HistoryBudget = DefaultHistoryBudget
	}
	if c.Agent.TerminateTool == "" {
		c.Agent.TerminateTool = DefaultTerminateTool
	}
	if c.Stream.QuestionWindow <= 0 {
		c.Stream.QuestionWindow = DefaultQuestionWindow
	}
	if c.Stream.QuestionTail <= 0 {
		c.Stream.QuestionTail = DefaultQuestionTail
	}
	if c.Stream.MaxChars <= 0 {
		c.Stream.MaxChars = DefaultMaxChars
	}
	if len(c.Stream.WaitPhrases) == 0 {
		c.Stream.WaitPhrases = append([]string(nil), DefaultWaitPhrases...)
	}
	if len(c.Stream.IdentityPhrases) == 0 {
		c.Stream.IdentityPhrases = append([]string(nil), DefaultIdentityPhrases...)
	}
	if c.Memory.Type == "" {
		c.Memory.Type = "memory"
	}
	if c.Memory.Window <= 0 {
		c.Memory.Window = DefaultMemoryWindow
	}
	if c.Tools.ImageSearch.PerPage <= 0 {
		c.Tools.ImageSearch.PerPage = 5
	}
}

// Validate 校验配置约束
func (c *Config) Validate() error {
	if c.Agent.HistoryBudget >= HistoryCeiling {
		return fmt.Errorf("agent.history_budget 必须小于 %d，当前: %d", HistoryCeiling, c.Agent.HistoryBudget)
	}
	return nil
}
