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
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "love-agent/pkg/errors"
)

type stubTool struct {
	name string
	run  func(args string) (string, error)
	runs int
}

func (s *stubTool) Info(context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: s.name, Desc: s.name + " desc"}, nil
}

func (s *stubTool) InvokableRun(_ context.Context, args string, _ ...tool.Option) (string, error) {
	s.runs++
	return s.run(args)
}

func echo(name string) *stubTool {
	return &stubTool{name: name, run: func(args string) (string, error) { return name + ":" + args, nil }}
}

func call(id, name, args string) schema.ToolCall {
	return schema.ToolCall{ID: id, Type: "function", Function: schema.FunctionCall{Name: name, Arguments: args}}
}

func TestRegistry_RegisterKeepsOrder(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	require.NoError(t, r.Register(ctx, echo("b")))
	require.NoError(t, r.Register(ctx, echo("a")))
	assert.Equal(t, []string{"b", "a"}, r.Names())

	infos, err := r.Infos(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "b", infos[0].Name)

	_, ok := r.Get("a")
	assert.True(t, ok)
	_, ok = r.Get("missing")
	assert.False(t, ok)

	assert.ErrorIs(t, r.Register(ctx, echo("")), pkgerrors.ErrInvalidArg)
}

func TestRegistry_DuplicateNameRejected(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	first := echo("searchImage")
	require.NoError(t, r.Register(ctx, first))

	err := r.Register(ctx, echo("searchImage"))
	require.ErrorIs(t, err, pkgerrors.ErrInvalidArg)
	assert.Contains(t, err.Error(), "searchImage")
	assert.Equal(t, []string{"searchImage"}, r.Names())
	got, ok := r.Get("searchImage")
	require.True(t, ok)
	assert.Same(t, first, got, "first registration wins")
}

func TestDispatcher_FailuresBecomePayloads(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	failing := &stubTool{name: "sendEmail", run: func(string) (string, error) { return "", errors.New("smtp down") }}
	panicking := &stubTool{name: "explode", run: func(string) (string, error) { panic("boom") }}
	after := echo("searchImage")
	require.NoError(t, r.Register(ctx, failing))
	require.NoError(t, r.Register(ctx, panicking))
	require.NoError(t, r.Register(ctx, after))

	d := NewDispatcher(r, nil)
	results := d.Dispatch(ctx, []schema.ToolCall{
		call("1", "sendEmail", `{}`),
		call("2", "nope", `{}`),
		call("3", "explode", `{}`),
		call("4", "searchImage", ``),
	})

	require.Len(t, results, 4)
	assert.Equal(t, "工具 sendEmail 执行失败：smtp down", results[0].Payload)
	assert.Error(t, results[0].Err)
	assert.Equal(t, "未找到工具：nope", results[1].Payload)
	assert.Contains(t, results[2].Payload, "panic: boom")
	assert.Equal(t, "searchImage:{}", results[3].Payload)
	assert.NoError(t, results[3].Err)
	assert.Equal(t, 1, after.runs)

	msg := results[3].Message()
	assert.Equal(t, schema.Tool, msg.Role)
	assert.Equal(t, "4", msg.ToolCallID)
	assert.Equal(t, "searchImage", msg.ToolName)
}

func TestIsTerminateInvoked(t *testing.T) {
	results := []ToolResult{{Name: "searchImage"}, {Name: "doTerminate"}}
	assert.True(t, IsTerminateInvoked(results, ""))
	assert.False(t, IsTerminateInvoked(results, "finish"))
	assert.False(t, IsTerminateInvoked(results[:1], ""))
	assert.False(t, IsTerminateInvoked(nil, ""))
}

func TestSummary(t *testing.T) {
	got := Summary([]ToolResult{
		{Name: "searchImage", Payload: "https://a.jpg"},
		{Name: "doTerminate", Payload: "任务结束"},
	})
	assert.Equal(t, "工具 searchImage 返回的结果：https://a.jpg\n工具 doTerminate 返回的结果：任务结束", got)
	assert.Equal(t, "", Summary(nil))
}
