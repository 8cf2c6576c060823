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

package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"love-agent/pkg/log"
	"love-agent/pkg/metrics"
	"love-agent/pkg/tracing"
)

// DefaultTerminateTool 结束 Agent 循环的哨兵工具名
const DefaultTerminateTool = "doTerminate"

// ToolResult 单次工具调用的结果；执行失败时 Payload 为错误描述，Err 保留原始错误
type ToolResult struct {
	CallID  string
	Name    string
	Payload string
	Err     error
}

// Message 转为工具结果消息
func (r ToolResult) Message() *schema.Message {
	return &schema.Message{
		Role:       schema.Tool,
		Content:    r.Payload,
		ToolCallID: r.CallID,
		ToolName:   r.Name,
	}
}

// Dispatcher 按顺序执行模型一次请求的全部工具调用
type Dispatcher struct {
	registry *Registry
	logger   *log.Logger
}

// NewDispatcher 创建 Dispatcher；logger 可为 nil
func NewDispatcher(registry *Registry, logger *log.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, logger: log.OrNop(logger)}
}

// Dispatch 执行整批调用；单个工具失败（含未知工具、panic）转为失败载荷，不中断其余调用
func (d *Dispatcher) Dispatch(ctx context.Context, calls []schema.ToolCall) []ToolResult {
	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, d.invoke(ctx, call))
	}
	return results
}

func (d *Dispatcher) invoke(ctx context.Context, call schema.ToolCall) (res ToolResult) {
	name := call.Function.Name
	res = ToolResult{CallID: call.ID, Name: name}

	ctx, span := tracing.StartToolSpan(ctx, name, call.ID)
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("panic: %v", p)
			res.Payload = failurePayload(name, res.Err)
		}
		metrics.ToolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if res.Err != nil {
			metrics.ToolFailTotal.WithLabelValues(name).Inc()
			span.RecordError(res.Err)
			d.logger.Warn("工具执行失败", "tool", name, "call_id", call.ID, "error", res.Err)
		}
		span.End()
	}()

	t, ok := d.registry.Get(name)
	if !ok {
		res.Err = fmt.Errorf("unknown tool %q", name)
		res.Payload = fmt.Sprintf("未找到工具：%s", name)
		return res
	}
	args := call.Function.Arguments
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	out, err := t.InvokableRun(ctx, args)
	if err != nil {
		res.Err = err
		res.Payload = failurePayload(name, err)
		return res
	}
	res.Payload = out
	return res
}

func failurePayload(name string, err error) string {
	return fmt.Sprintf("工具 %s 执行失败：%v", name, err)
}

// IsTerminateInvoked 是否有结果来自哨兵工具；sentinel 为空时使用 DefaultTerminateTool
func IsTerminateInvoked(results []ToolResult, sentinel string) bool {
	if sentinel == "" {
		sentinel = DefaultTerminateTool
	}
	for _, r := range results {
		if r.Name == sentinel {
			return true
		}
	}
	return false
}

// Summary 每个工具一行：工具 <name> 返回的结果：<payload>，按结果顺序以换行连接
func Summary(results []ToolResult) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, "工具 "+r.Name+" 返回的结果："+r.Payload)
	}
	return strings.Join(lines, "\n")
}
