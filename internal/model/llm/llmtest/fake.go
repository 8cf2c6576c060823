// Package llmtest 可编排回复的 ToolCallingChatModel，供测试使用
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Reply Generate 的一次回复
type Reply struct {
	Msg *schema.Message
	Err error
}

// StreamScript Stream 的一次回复：依次发送 Chunks，然后以 Err（可为 nil）结束；StartErr 非 nil 时 Stream 直接失败
type StreamScript struct {
	Chunks   []string
	Err      error
	StartErr error
}

// Model 按顺序消费 Replies / Streams，并记录每次调用的输入
type Model struct {
	mu          sync.Mutex
	Replies     []Reply
	Streams     []StreamScript
	Calls       [][]*schema.Message
	StreamCalls [][]*schema.Message
	Tools       []*schema.ToolInfo
	// Fallback Replies 用尽后的回复；nil 时返回错误
	Fallback func(input []*schema.Message) (*schema.Message, error)
}

var _ model.ToolCallingChatModel = (*Model)(nil)

// Text 纯文本回复
func Text(s string) Reply {
	return Reply{Msg: schema.AssistantMessage(s, nil)}
}

// Call 请求调用一个工具的回复
func Call(id, name, args string) Reply {
	return Reply{Msg: schema.AssistantMessage("", []schema.ToolCall{{
		ID: id, Type: "function",
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}})}
}

// Fail 模型调用失败
func Fail(err error) Reply {
	return Reply{Err: err}
}

func (m *Model) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, append([]*schema.Message(nil), input...))
	if len(m.Replies) == 0 {
		if m.Fallback != nil {
			return m.Fallback(input)
		}
		return nil, fmt.Errorf("llmtest: no scripted reply for call %d", len(m.Calls))
	}
	r := m.Replies[0]
	m.Replies = m.Replies[1:]
	return r.Msg, r.Err
}

func (m *Model) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StreamCalls = append(m.StreamCalls, append([]*schema.Message(nil), input...))
	if len(m.Streams) == 0 {
		return nil, fmt.Errorf("llmtest: no scripted stream for call %d", len(m.StreamCalls))
	}
	sc := m.Streams[0]
	m.Streams = m.Streams[1:]
	if sc.StartErr != nil {
		return nil, sc.StartErr
	}
	sr, sw := schema.Pipe[*schema.Message](len(sc.Chunks) + 1)
	go func() {
		defer sw.Close()
		for _, c := range sc.Chunks {
			if closed := sw.Send(schema.AssistantMessage(c, nil), nil); closed {
				return
			}
		}
		if sc.Err != nil {
			sw.Send(nil, sc.Err)
		}
	}()
	return sr, nil
}

// WithTools 记录绑定的工具并返回自身
func (m *Model) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tools = tools
	return m, nil
}

// CallCount Generate 调用次数
func (m *Model) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall 最近一次 Generate 的输入
func (m *Model) LastCall() []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	return m.Calls[len(m.Calls)-1]
}
