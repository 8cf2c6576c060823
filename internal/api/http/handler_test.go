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

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"love-agent/internal/agent"
	"love-agent/internal/agent/memory"
	"love-agent/internal/agent/tools"
	"love-agent/internal/api/http/middleware"
	loveapp "love-agent/internal/app"
	"love-agent/internal/model/llm/llmtest"
	"love-agent/internal/stream"
	"love-agent/internal/tool/builtin"
	"love-agent/pkg/config"
	pkgerrors "love-agent/pkg/errors"
)

type serverFixture struct {
	h     *server.Hertz
	model *llmtest.Model
	store *memory.InMemoryStore
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	ctx := context.Background()
	reg := tools.NewRegistry()
	require.NoError(t, builtin.RegisterBuiltin(ctx, reg, builtin.Options{}))
	m := &llmtest.Model{}
	store := memory.NewInMemoryStore()
	a, err := loveapp.NewLoveApp(ctx, loveapp.Options{
		Model:    m,
		Store:    store,
		Registry: reg,
		Stream:   stream.DefaultConfig(),
	})
	require.NoError(t, err)
	return &serverFixture{h: buildServer(a), model: m, store: store}
}

func buildServer(svc LoveService) *server.Hertz {
	mw := middleware.NewMiddleware(config.CORSConfig{Enable: true}, nil)
	return NewRouter(NewHandler(svc, nil, 0), mw).Build(":0")
}

func get(h *server.Hertz, path string, params url.Values) *ut.ResponseRecorder {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return ut.PerformRequest(h.Engine, "GET", path, &ut.Body{Body: bytes.NewReader(nil), Len: 0})
}

// sseData 拼接响应中全部 data 行，返回数据与事件名
func sseData(body []byte) (string, []string) {
	var data strings.Builder
	var events []string
	for _, line := range strings.Split(string(body), "\n") {
		switch {
		case strings.HasPrefix(line, "data: "):
			data.WriteString(strings.TrimPrefix(line, "data: "))
		case strings.HasPrefix(line, "event: "):
			events = append(events, strings.TrimPrefix(line, "event: "))
		}
	}
	return data.String(), events
}

func TestHealthCheck(t *testing.T) {
	f := newServerFixture(t)
	w := get(f.h, "/api/health", nil)
	resp := w.Result()
	assert.Equal(t, 200, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newServerFixture(t)
	get(f.h, "/api/health", nil)
	w := get(f.h, "/metrics", nil)
	assert.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Body()), "love_agent_http_requests_total")
}

func TestChatSync(t *testing.T) {
	f := newServerFixture(t)
	f.model.Replies = []llmtest.Reply{llmtest.Text("你好，我是恋爱心理顾问")}

	w := get(f.h, "/api/ai/love_app/chat/sync", url.Values{"message": {"你好"}, "chatId": {"c1"}})
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())
	assert.Equal(t, "c1", string(resp.Header.Peek(ChatIDHeader)))

	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.Equal(t, "你好，我是恋爱心理顾问", body["content"])
	assert.Equal(t, "c1", body["chat_id"])
}

func TestChatSync_GeneratesChatID(t *testing.T) {
	f := newServerFixture(t)
	f.model.Replies = []llmtest.Reply{llmtest.Text("好的")}

	w := get(f.h, "/api/ai/love_app/chat/sync", url.Values{"message": {"你好"}})
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())
	id := string(resp.Header.Peek(ChatIDHeader))
	assert.NotEmpty(t, id)

	stored, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestChatSync_RequiresMessage(t *testing.T) {
	f := newServerFixture(t)
	w := get(f.h, "/api/ai/love_app/chat/sync", url.Values{"chatId": {"c1"}})
	assert.Equal(t, 400, w.Result().StatusCode())
	assert.Equal(t, 0, f.model.CallCount())
}

func TestChatSync_ModelFailure(t *testing.T) {
	f := newServerFixture(t)
	f.model.Replies = []llmtest.Reply{llmtest.Fail(errors.New("quota exceeded"))}

	w := get(f.h, "/api/ai/love_app/chat/sync", url.Values{"message": {"你好"}, "chatId": {"c1"}})
	resp := w.Result()
	assert.Equal(t, 502, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), "处理时遇到了错误：quota exceeded")
}

func TestChatSSE_StopsAtQuestion(t *testing.T) {
	f := newServerFixture(t)
	f.model.Streams = []llmtest.StreamScript{{Chunks: []string{"你好，", "最近怎么样？", "还好吗"}}}

	w := get(f.h, "/api/ai/love_app/chat/sse", url.Values{"message": {"你好"}, "chatId": {"c1"}})
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())
	assert.Contains(t, string(resp.Header.ContentType()), "text/event-stream")

	data, events := sseData(resp.Body())
	assert.Equal(t, "你好，最近怎么样？", data)
	assert.Empty(t, events)

	stored, err := f.store.Get(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "你好，最近怎么样？", stored[1].Content)
}

func TestChatSSE_ModelFailureSendsErrorEvent(t *testing.T) {
	f := newServerFixture(t)
	f.model.Streams = []llmtest.StreamScript{{StartErr: errors.New("connection reset")}}

	w := get(f.h, "/api/ai/love_app/chat/sse", url.Values{"message": {"你好"}, "chatId": {"c1"}})
	data, events := sseData(w.Result().Body())
	assert.Equal(t, []string{"error"}, events)
	assert.Equal(t, "处理时遇到了错误：connection reset", data)
}

func TestChatWithTools(t *testing.T) {
	f := newServerFixture(t)
	f.model.Replies = []llmtest.Reply{llmtest.Call("call-1", "doTerminate", "{}")}

	w := get(f.h, "/api/ai/love_app/chat/tools", url.Values{"message": {"结束"}, "chatId": {"c1"}})
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())

	var res agent.RunResult
	require.NoError(t, json.Unmarshal(resp.Body(), &res))
	assert.Equal(t, agent.StateFinished, res.State)
	assert.Equal(t, 1, res.Steps)
}

func TestChatWithReport(t *testing.T) {
	f := newServerFixture(t)
	f.model.Replies = []llmtest.Reply{llmtest.Text(`{"title":"小明的恋爱报告","suggestions":["多沟通"]}`)}

	w := get(f.h, "/api/ai/love_app/chat/report", url.Values{"message": {"帮我分析"}, "chatId": {"c1"}})
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())

	var report loveapp.LoveReport
	require.NoError(t, json.Unmarshal(resp.Body(), &report))
	assert.Equal(t, "小明的恋爱报告", report.Title)
	assert.Equal(t, []string{"多沟通"}, report.Suggestions)
}

func TestManusChat(t *testing.T) {
	f := newServerFixture(t)
	f.model.Replies = []llmtest.Reply{llmtest.Text("已经完成")}

	w := get(f.h, "/api/ai/manus/chat", url.Values{"message": {"整理一下"}, "chatId": {"c1"}})
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())
	data, events := sseData(resp.Body())
	assert.Equal(t, "Step 1: 已经完成", data)
	assert.Empty(t, events)
}

func TestCORSPreflight(t *testing.T) {
	f := newServerFixture(t)
	w := ut.PerformRequest(f.h.Engine, "OPTIONS", "/api/ai/love_app/chat/sync", &ut.Body{Body: bytes.NewReader(nil), Len: 0},
		ut.Header{Key: "Origin", Value: "http://localhost:3000"})
	resp := w.Result()
	assert.Equal(t, 204, resp.StatusCode())
	assert.Equal(t, "*", string(resp.Header.Peek("Access-Control-Allow-Origin")))
}

// stubService 固定返回错误，用于检查状态码映射
type stubService struct {
	err    error
	result *agent.RunResult
}

func (s *stubService) Chat(context.Context, string, string) (string, error) { return "", s.err }
func (s *stubService) ChatStream(context.Context, string, string, stream.EmitFunc) (*loveapp.StreamResult, error) {
	return nil, s.err
}
func (s *stubService) ChatWithReport(context.Context, string, string) (*loveapp.LoveReport, error) {
	return nil, s.err
}
func (s *stubService) ChatWithTools(context.Context, string, string) (*agent.RunResult, error) {
	return s.result, s.err
}
func (s *stubService) RunManus(context.Context, string, string) *schema.StreamReader[string] {
	return schema.StreamReaderFromArray([]string{})
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		path string
		want int
	}{
		{"busy", pkgerrors.ErrConversationBusy, "/api/ai/love_app/chat/sync", 409},
		{"model", pkgerrors.ErrModelInvocation, "/api/ai/love_app/chat/report", 502},
		{"unknown", errors.New("boom"), "/api/ai/love_app/chat/sync", 500},
		{"deadline", context.DeadlineExceeded, "/api/ai/love_app/chat/report", 504},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := buildServer(&stubService{err: tt.err})
			w := get(h, tt.path, url.Values{"message": {"你好"}, "chatId": {"c1"}})
			assert.Equal(t, tt.want, w.Result().StatusCode())
		})
	}
}

func TestChatWithTools_StepLimitReturnsPartialResult(t *testing.T) {
	res := &agent.RunResult{ConversationID: "c1", Final: "还在思考", Steps: 10, State: agent.StateFinished}
	h := buildServer(&stubService{err: &pkgerrors.StepLimitError{MaxSteps: 10}, result: res})

	w := get(h, "/api/ai/love_app/chat/tools", url.Values{"message": {"你好"}, "chatId": {"c1"}})
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())
	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.Equal(t, "还在思考", body["final"])
	assert.Contains(t, body["error"], "step limit exceeded")
}

func TestFrame_SplitsLines(t *testing.T) {
	assert.Equal(t, "data: a\ndata: b\n\n", frame("", "a\nb"))
	assert.Equal(t, "event: error\ndata: x\n\n", frame("error", "x"))
}
