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
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"love-agent/internal/agent"
	"love-agent/internal/agent/memory"
	"love-agent/internal/agent/tools"
	"love-agent/internal/stream"
	"love-agent/pkg/errors"
	"love-agent/pkg/log"
	"love-agent/pkg/metrics"
	"love-agent/pkg/tracing"
)

// 工具对话与通用 Agent 的会话存储前缀
const (
	toolsNamespace = "tools:"
	manusNamespace = "manus:"
)

// Options LoveApp 装配参数
type Options struct {
	Model         model.ToolCallingChatModel // 未绑定工具的模型
	Store         memory.Store
	Registry      *tools.Registry
	Window        int // 普通对话可见的最近消息条数
	HistoryBudget int
	SystemPrompt  string
	Stream        stream.Config
	Manus         agent.Config
	Logger        *log.Logger
}

// LoveApp 恋爱顾问应用
type LoveApp struct {
	model        model.ToolCallingChatModel
	chatStore    memory.Store
	budget       int
	systemPrompt string
	streamCfg    stream.Config
	tools        *agent.Agent
	manus        *agent.Agent
	busy         sync.Map
	logger       *log.Logger
}

// StreamResult 流式轮次结果；模型失败时 Text 为合成的错误消息
type StreamResult struct {
	ChatID     string
	Text       string
	Rule       stream.Rule
	Suppressed bool
}

// NewLoveApp 创建应用；工具对话与通用 Agent 共用 Registry，各自使用独立的会话命名空间
func NewLoveApp(ctx context.Context, opts Options) (*LoveApp, error) {
	if opts.Model == nil || opts.Store == nil || opts.Registry == nil {
		return nil, fmt.Errorf("%w: LoveApp 需要 model、store 与 registry", errors.ErrInvalidArg)
	}
	logger := log.OrNop(opts.Logger)
	if opts.HistoryBudget <= 0 {
		opts.HistoryBudget = memory.DefaultBudget
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = LoveSystemPrompt
	}

	manusCfg := opts.Manus
	if manusCfg.Name == "" {
		manusCfg.Name = "manus"
	}
	if manusCfg.SystemPrompt == "" {
		manusCfg.SystemPrompt = ManusSystemPrompt
	}
	if manusCfg.NextStepPrompt == "" {
		manusCfg.NextStepPrompt = ManusNextStepPrompt
	}
	if manusCfg.HistoryBudget <= 0 {
		manusCfg.HistoryBudget = opts.HistoryBudget
	}
	manus, err := agent.New(ctx, opts.Model, opts.Registry, memory.NewPrefixStore(opts.Store, manusNamespace), manusCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("创建 manus Agent 失败: %w", err)
	}

	toolsAgent, err := agent.New(ctx, opts.Model, opts.Registry, memory.NewPrefixStore(opts.Store, toolsNamespace), agent.Config{
		Name:          "tools",
		SystemPrompt:  opts.SystemPrompt,
		MaxSteps:      manusCfg.MaxSteps,
		HistoryBudget: opts.HistoryBudget,
		TerminateTool: manusCfg.TerminateTool,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("创建工具对话 Agent 失败: %w", err)
	}

	return &LoveApp{
		model:        opts.Model,
		chatStore:    memory.NewWindowStore(opts.Store, opts.Window),
		budget:       opts.HistoryBudget,
		systemPrompt: opts.SystemPrompt,
		streamCfg:    opts.Stream.WithDefaults(),
		tools:        toolsAgent,
		manus:        manus,
		logger:       logger,
	}, nil
}

// NewChatID 生成新的会话 ID
func NewChatID() string {
	return uuid.NewString()
}

// acquire 同一会话同一时刻只允许一个普通对话轮次
func (a *LoveApp) acquire(chatID string) (func(), error) {
	if _, loaded := a.busy.LoadOrStore(chatID, struct{}{}); loaded {
		return nil, fmt.Errorf("%w: %s", errors.ErrConversationBusy, chatID)
	}
	return func() { a.busy.Delete(chatID) }, nil
}

// modelInput 系统提示词 + 截断后的历史 + 本轮用户消息
func (a *LoveApp) modelInput(chatID, systemPrompt string, history []*schema.Message, user *schema.Message) []*schema.Message {
	view := make([]*schema.Message, 0, len(history)+1)
	view = append(view, history...)
	view = append(view, user)

	bounded := memory.BoundHistory(view, a.budget)
	if len(bounded) != len(view) {
		metrics.HistoryTruncationTotal.Inc()
		a.logger.Info("对话历史已截断", "chat_id", chatID, "before", len(view), "after", len(bounded))
	}
	input := make([]*schema.Message, 0, len(bounded)+1)
	input = append(input, schema.SystemMessage(systemPrompt))
	return append(input, memory.DropOrphanToolResults(bounded)...)
}

// persist 每轮结束时一次性追加；不受请求取消影响
func (a *LoveApp) persist(ctx context.Context, chatID string, msgs ...*schema.Message) error {
	if err := a.chatStore.Append(context.WithoutCancel(ctx), chatID, msgs...); err != nil {
		a.logger.Error("保存对话记忆失败", "chat_id", chatID, "error", err)
		return fmt.Errorf("persist history: %w", err)
	}
	return nil
}

func observeTurn(mode, status string, start time.Time) {
	metrics.TurnTotal.WithLabelValues(mode, status).Inc()
	metrics.TurnDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}

// generate 一次非流式调用；失败时记录合成消息并返回其文本
func (a *LoveApp) generate(ctx context.Context, mode, chatID, systemPrompt, message string) (*schema.Message, *schema.Message, error) {
	history, err := a.chatStore.Get(ctx, chatID)
	if err != nil {
		return nil, nil, fmt.Errorf("load history %s: %w", chatID, err)
	}
	user := schema.UserMessage(message)
	resp, err := a.model.Generate(ctx, a.modelInput(chatID, systemPrompt, history, user))
	if err == nil && resp == nil {
		err = fmt.Errorf("empty model response")
	}
	if err != nil {
		a.logger.Error("模型调用失败", "mode", mode, "chat_id", chatID, "error", err)
		synthetic := schema.AssistantMessage(agent.FailureMessage(err), nil)
		_ = a.persist(ctx, chatID, user, synthetic)
		return user, synthetic, fmt.Errorf("%w: %v", errors.ErrModelInvocation, err)
	}
	return user, resp, nil
}

// Chat 多轮对话
func (a *LoveApp) Chat(ctx context.Context, chatID, message string) (string, error) {
	release, err := a.acquire(chatID)
	if err != nil {
		return "", err
	}
	defer release()

	start := time.Now()
	ctx, span := tracing.StartTurnSpan(ctx, "chat", chatID)
	defer span.End()

	user, resp, err := a.generate(ctx, "chat", chatID, a.systemPrompt, message)
	if err != nil {
		span.RecordError(err)
		observeTurn("chat", "error", start)
		if resp != nil {
			return resp.Content, err
		}
		return "", err
	}
	a.logger.Info("对话回复", "chat_id", chatID, "content", resp.Content)
	if err := a.persist(ctx, chatID, user, schema.AssistantMessage(resp.Content, nil)); err != nil {
		observeTurn("chat", "error", start)
		return resp.Content, err
	}
	observeTurn("chat", "ok", start)
	return resp.Content, nil
}

// ChatStream 流式对话：按增量调用 emit，命中终止规则后停止读取模型输出。
// 用户与助手消息在终止后一次性写入；下游断开时本轮不写入历史。
func (a *LoveApp) ChatStream(ctx context.Context, chatID, message string, emit stream.EmitFunc) (*StreamResult, error) {
	release, err := a.acquire(chatID)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	ctx, span := tracing.StartTurnSpan(ctx, "stream", chatID)
	defer span.End()

	history, err := a.chatStore.Get(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", chatID, err)
	}
	user := schema.UserMessage(message)
	suppress := stream.HasIntroduced(history, a.streamCfg.IdentityPhrases)
	if suppress {
		metrics.IdentitySuppressedTotal.Inc()
	}
	result := &StreamResult{ChatID: chatID, Suppressed: suppress}

	src, err := a.model.Stream(ctx, a.modelInput(chatID, a.systemPrompt, history, user))
	if err != nil {
		return a.streamFailure(ctx, span, result, user, err, start)
	}
	st, err := stream.New(a.streamCfg, suppress).Consume(ctx, src, emit, a.logger)
	if err != nil {
		if errors.Is(err, stream.ErrConsumerClosed) || ctx.Err() != nil {
			a.logger.Info("流式对话已取消，本轮不写入历史", "chat_id", chatID, "emitted", len([]rune(st.Text())))
			observeTurn("stream", "canceled", start)
			return nil, err
		}
		return a.streamFailure(ctx, span, result, user, err, start)
	}

	result.Text = st.Text()
	result.Rule = st.Rule
	msgs := []*schema.Message{user}
	if result.Text != "" {
		msgs = append(msgs, schema.AssistantMessage(result.Text, nil))
	} else {
		a.logger.Warn("AI回复为空，未保存助手消息", "chat_id", chatID)
	}
	if err := a.persist(ctx, chatID, msgs...); err != nil {
		observeTurn("stream", "error", start)
		return result, err
	}
	a.logger.Info("已保存流式回复", "chat_id", chatID, "rule", string(st.Rule), "length", len([]rune(result.Text)))
	observeTurn("stream", "ok", start)
	return result, nil
}

// streamFailure 模型失败：写入合成消息，Text 返回给调用方展示
func (a *LoveApp) streamFailure(ctx context.Context, span trace.Span, result *StreamResult, user *schema.Message, cause error, start time.Time) (*StreamResult, error) {
	a.logger.Error("流式模型调用失败", "chat_id", result.ChatID, "error", cause)
	span.RecordError(cause)
	result.Text = agent.FailureMessage(cause)
	_ = a.persist(ctx, result.ChatID, user, schema.AssistantMessage(result.Text, nil))
	observeTurn("stream", "error", start)
	return result, fmt.Errorf("%w: %v", errors.ErrModelInvocation, cause)
}

// ChatWithReport 生成结构化恋爱报告
func (a *LoveApp) ChatWithReport(ctx context.Context, chatID, message string) (*LoveReport, error) {
	release, err := a.acquire(chatID)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	ctx, span := tracing.StartTurnSpan(ctx, "report", chatID)
	defer span.End()

	user, resp, err := a.generate(ctx, "report", chatID, a.systemPrompt+ReportInstruction, message)
	if err != nil {
		span.RecordError(err)
		observeTurn("report", "error", start)
		return nil, err
	}
	if err := a.persist(ctx, chatID, user, schema.AssistantMessage(resp.Content, nil)); err != nil {
		observeTurn("report", "error", start)
		return nil, err
	}
	report, err := ParseReport(resp.Content)
	if err != nil {
		observeTurn("report", "error", start)
		return nil, err
	}
	a.logger.Info("恋爱报告", "chat_id", chatID, "title", report.Title, "suggestions", len(report.Suggestions))
	observeTurn("report", "ok", start)
	return report, nil
}

// ChatWithTools 可调用工具的对话，由 think/act 循环驱动
func (a *LoveApp) ChatWithTools(ctx context.Context, chatID, message string) (*agent.RunResult, error) {
	return a.tools.Run(ctx, chatID, message)
}

// RunManus 通用 Agent，按步输出 "Step n: <结果>"
func (a *LoveApp) RunManus(ctx context.Context, chatID, message string) *schema.StreamReader[string] {
	return a.manus.RunStream(ctx, chatID, message)
}
