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

// Package agent 工具调用 Agent：think/act 状态机驱动模型调用与工具分发，并约束历史长度
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"love-agent/internal/agent/memory"
	"love-agent/internal/agent/tools"
	"love-agent/pkg/errors"
	"love-agent/pkg/log"
	"love-agent/pkg/metrics"
	"love-agent/pkg/tracing"
)

// 固定文案
const (
	NoToolCallResult   = "没有工具需要调用"
	ThinkOnlyResult    = "思考完成 - 无需行动"
	failurePrefix      = "处理时遇到了错误："
	stepLimitMsgFormat = "执行终止：达到最大步骤数 (%d)"
	defaultMaxSteps    = 10
)

// Config Agent 配置
type Config struct {
	Name           string
	SystemPrompt   string
	NextStepPrompt string
	MaxSteps       int
	HistoryBudget  int
	TerminateTool  string
}

// RunResult 一轮执行的结果
type RunResult struct {
	ConversationID string `json:"conversation_id"`
	Final          string `json:"final"`
	Steps          int    `json:"steps"`
	State          State  `json:"state"`
}

// StepObserver 每步结束后回调，summary 为该步的可读结果
type StepObserver func(step int, summary string)

// Agent 持有绑定了工具 schema 的模型、工具分发器与会话存储
type Agent struct {
	cfg        Config
	model      model.ToolCallingChatModel
	dispatcher *tools.Dispatcher
	store      memory.Store
	sessions   sessionSet
	logger     *log.Logger
}

// New 将 registry 的全部工具绑定到模型；store 用于首次加载会话与每轮结束时追加
func New(ctx context.Context, chatModel model.ToolCallingChatModel, registry *tools.Registry, store memory.Store, cfg Config, logger *log.Logger) (*Agent, error) {
	if chatModel == nil || registry == nil || store == nil {
		return nil, fmt.Errorf("%w: agent 需要 model、registry 与 store", errors.ErrInvalidArg)
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = defaultMaxSteps
	}
	if cfg.HistoryBudget <= 0 {
		cfg.HistoryBudget = memory.DefaultBudget
	}
	if cfg.HistoryBudget >= memory.HardCeiling {
		return nil, fmt.Errorf("%w: history budget %d 必须小于 %d", errors.ErrInvalidArg, cfg.HistoryBudget, memory.HardCeiling)
	}
	if cfg.TerminateTool == "" {
		cfg.TerminateTool = tools.DefaultTerminateTool
	}
	if cfg.Name == "" {
		cfg.Name = "agent"
	}
	infos, err := registry.Infos(ctx)
	if err != nil {
		return nil, err
	}
	bound, err := chatModel.WithTools(infos)
	if err != nil {
		return nil, fmt.Errorf("绑定工具失败: %w", err)
	}
	logger = log.OrNop(logger)
	return &Agent{
		cfg:        cfg,
		model:      bound,
		dispatcher: tools.NewDispatcher(registry, logger),
		store:      store,
		sessions:   sessionSet{active: make(map[string]struct{})},
		logger:     logger,
	}, nil
}

// Session 从 store 加载会话的最新快照；不做缓存，其他写入方追加的消息下一轮即可见
func (a *Agent) Session(ctx context.Context, conversationID string) (*Session, error) {
	history, err := a.store.Get(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", conversationID, err)
	}
	return newSession(conversationID, history, a.cfg.NextStepPrompt), nil
}

// Run 执行一轮：追加用户消息后交替 think/act，直到结束或达到最大步数
func (a *Agent) Run(ctx context.Context, conversationID, message string) (*RunResult, error) {
	return a.RunObserved(ctx, conversationID, message, nil)
}

// RunObserved 同 Run，每步结束后调用 observe（可为 nil）
func (a *Agent) RunObserved(ctx context.Context, conversationID, message string, observe StepObserver) (*RunResult, error) {
	if !a.sessions.acquire(conversationID) {
		return nil, fmt.Errorf("%w: %s", errors.ErrConversationBusy, conversationID)
	}
	defer a.sessions.release(conversationID)
	s, err := a.Session(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, span := tracing.StartTurnSpan(ctx, a.cfg.Name, conversationID)
	defer span.End()

	s.State = StateThinking
	s.pending = nil
	s.produced = nil
	s.record(schema.UserMessage(message))

	var (
		steps   int
		summary string
		runErr  error
	)
	for steps < a.cfg.MaxSteps && !s.State.IsTerminal() {
		if err := ctx.Err(); err != nil {
			s.State = StateError
			runErr = err
			break
		}
		steps++
		summary = a.step(ctx, s, steps)
		a.logger.Info("Agent 步骤完成", "agent", a.cfg.Name, "conversation_id", s.ID, "step", steps, "state", s.State)
		if observe != nil {
			observe(steps, summary)
		}
	}
	if runErr == nil && !s.State.IsTerminal() {
		s.record(schema.AssistantMessage(fmt.Sprintf(stepLimitMsgFormat, a.cfg.MaxSteps), nil))
		s.State = StateError
		runErr = &errors.StepLimitError{MaxSteps: a.cfg.MaxSteps}
		a.logger.Warn("达到最大步骤数", "conversation_id", s.ID, "max_steps", a.cfg.MaxSteps)
	}
	metrics.AgentSteps.Observe(float64(steps))

	produced := s.produced
	s.produced = nil
	if err := a.store.Append(context.WithoutCancel(ctx), s.ID, produced...); err != nil {
		a.logger.Error("持久化会话历史失败", "conversation_id", s.ID, "error", err)
		if runErr == nil {
			runErr = fmt.Errorf("persist history: %w", err)
		}
	}
	if runErr != nil {
		span.RecordError(runErr)
	}
	metrics.TurnTotal.WithLabelValues(a.cfg.Name, turnStatus(s.State, runErr)).Inc()
	metrics.TurnDuration.WithLabelValues(a.cfg.Name).Observe(time.Since(start).Seconds())

	return &RunResult{
		ConversationID: s.ID,
		Final:          finalText(produced, summary),
		Steps:          steps,
		State:          s.State,
	}, runErr
}

// step 一次 think + 按需 act
func (a *Agent) step(ctx context.Context, s *Session, n int) string {
	ctx, span := tracing.StartStepSpan(ctx, n)
	defer span.End()
	if !a.Think(ctx, s) {
		if last := lastAssistantText(s.messages); last != "" && s.State.IsTerminal() {
			return last
		}
		return ThinkOnlyResult
	}
	return a.Act(ctx, s)
}

// Think 调用模型决定下一步；返回 true 表示有待执行的工具调用
func (a *Agent) Think(ctx context.Context, s *Session) bool {
	if a.cfg.NextStepPrompt != "" && !s.NextStepPromptAdded {
		s.record(schema.UserMessage(a.cfg.NextStepPrompt))
		s.NextStepPromptAdded = true
	}
	s.messages = a.bound(s.ID, s.messages)
	s.State = StateThinking

	input := make([]*schema.Message, 0, len(s.messages)+1)
	if a.cfg.SystemPrompt != "" {
		input = append(input, schema.SystemMessage(a.cfg.SystemPrompt))
	}
	input = append(input, memory.DropOrphanToolResults(s.messages)...)

	resp, err := a.model.Generate(ctx, input)
	if err == nil && resp == nil {
		err = fmt.Errorf("empty model response")
	}
	if err != nil {
		a.logger.Error("思考过程遇到了问题", "agent", a.cfg.Name, "conversation_id", s.ID, "error", err)
		s.record(schema.AssistantMessage(FailureMessage(err), nil))
		s.State = StateError
		return false
	}
	a.logger.Info("模型思考", "agent", a.cfg.Name, "text", resp.Content, "tool_calls", len(resp.ToolCalls))
	if len(resp.ToolCalls) == 0 {
		s.record(resp)
		s.State = StateFinished
		return false
	}
	s.pending = resp
	s.State = StateActing
	return true
}

// Act 执行 think 产生的工具调用，助手调用消息与全部结果作为一批写入历史
func (a *Agent) Act(ctx context.Context, s *Session) string {
	if s.pending == nil || len(s.pending.ToolCalls) == 0 {
		return NoToolCallResult
	}
	pending := s.pending
	s.pending = nil

	results := a.dispatcher.Dispatch(ctx, pending.ToolCalls)
	batch := make([]*schema.Message, 0, len(results)+1)
	batch = append(batch, pending)
	for _, r := range results {
		batch = append(batch, r.Message())
	}
	s.record(batch...)
	s.messages = a.bound(s.ID, s.messages)

	if tools.IsTerminateInvoked(results, a.cfg.TerminateTool) {
		s.State = StateFinished
	} else {
		s.State = StateThinking
	}
	summary := tools.Summary(results)
	a.logger.Info("工具执行结果", "conversation_id", s.ID, "results", summary)
	return summary
}

func (a *Agent) bound(conversationID string, history []*schema.Message) []*schema.Message {
	out := memory.BoundHistory(history, a.cfg.HistoryBudget)
	if len(out) != len(history) {
		before := memory.TotalWeight(history)
		a.logger.Warn("消息列表超过安全阈值，开始截断", "conversation_id", conversationID, "weight", before, "budget", a.cfg.HistoryBudget)
		a.logger.Info("消息列表已截断", "conversation_id", conversationID,
			"from_messages", len(history), "to_messages", len(out),
			"from_weight", before, "to_weight", memory.TotalWeight(out))
		metrics.HistoryTruncationTotal.Inc()
	}
	return out
}

func lastAssistantText(msgs []*schema.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == schema.Assistant && len(msgs[i].ToolCalls) == 0 {
			return msgs[i].Content
		}
	}
	return ""
}

// turnStatus 指标中的轮次结果
func turnStatus(state State, err error) string {
	switch {
	case errors.Is(err, errors.ErrStepLimitExceeded):
		return "step_limit"
	case err != nil || state == StateError:
		return "error"
	default:
		return "ok"
	}
}

// FailureMessage 模型调用失败时写入历史的合成助手消息文本
func FailureMessage(err error) string {
	return failurePrefix + err.Error()
}

// finalText 本轮最后一条纯文本助手消息；没有时使用最后一步的结果
func finalText(produced []*schema.Message, lastSummary string) string {
	if t := lastAssistantText(produced); t != "" {
		return t
	}
	return lastSummary
}

// RunStream 异步执行一轮，按步输出 "Step n: <结果>"；执行出错时以流错误结束
func (a *Agent) RunStream(ctx context.Context, conversationID, message string) *schema.StreamReader[string] {
	sr, sw := schema.Pipe[string](a.cfg.MaxSteps + 1)
	go func() {
		defer sw.Close()
		start := time.Now()
		// 读取端关闭后取消本轮，不再调用模型
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		readerGone := false
		_, err := a.RunObserved(ctx, conversationID, message, func(step int, summary string) {
			if sw.Send(fmt.Sprintf("Step %d: %s", step, summary), nil) {
				readerGone = true
				cancel()
			}
		})
		if err != nil && !readerGone {
			sw.Send("", err)
		}
		a.logger.Debug("流式 Agent 轮次结束", "conversation_id", conversationID, "elapsed", time.Since(start))
	}()
	return sr
}
