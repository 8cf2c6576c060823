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

package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI 模拟服务端的各个接口
func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("/api/ai/love_app/chat/sync", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Chat-Id", "c1")
		if r.URL.Query().Get("message") == "fail" {
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, `{"chat_id":"c1","error":"model invocation failed"}`)
			return
		}
		fmt.Fprintf(w, `{"chat_id":"c1","content":"收到：%s"}`, r.URL.Query().Get("message"))
	})
	mux.HandleFunc("/api/ai/love_app/chat/sse", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("X-Chat-Id", "c2")
		fmt.Fprint(w, "data: 你好，\n\ndata: 最近怎么样？\n\n")
	})
	mux.HandleFunc("/api/ai/manus/chat", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: Step 1: 搜索\n\nevent: error\ndata: step limit exceeded\n\n")
	})
	mux.HandleFunc("/api/ai/love_app/chat/report", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"title":"报告","suggestions":["多沟通","多倾听"]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	chatID = ""
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append([]string{"--api", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestChatCommand(t *testing.T) {
	out, err := run(t, fakeAPI(t), "chat", "你好")
	require.NoError(t, err)
	assert.Equal(t, "[c1] 收到：你好\n", out)
}

func TestChatCommand_ServerError(t *testing.T) {
	_, err := run(t, fakeAPI(t), "chat", "fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model invocation failed")
}

func TestStreamCommand(t *testing.T) {
	out, err := run(t, fakeAPI(t), "stream", "你好")
	require.NoError(t, err)
	assert.Equal(t, "你好，最近怎么样？\nchat_id: c2\n", out)
}

func TestManusCommand_ErrorEvent(t *testing.T) {
	out, err := run(t, fakeAPI(t), "manus", "整理")
	assert.Equal(t, "Step 1: 搜索\n", out)
	require.Error(t, err)
	assert.Equal(t, "step limit exceeded", err.Error())
}

func TestReportCommand(t *testing.T) {
	out, err := run(t, fakeAPI(t), "report", "分析")
	require.NoError(t, err)
	assert.Equal(t, "报告\n  1. 多沟通\n  2. 多倾听\n", out)
}

func TestHealthCommand(t *testing.T) {
	out, err := run(t, fakeAPI(t), "health")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func TestInteractiveChat(t *testing.T) {
	srv := fakeAPI(t)
	var out bytes.Buffer
	chatID = ""
	err := runInteractive(newClient(srv.URL), strings.NewReader("你好\nexit\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "> 你好，最近怎么样？\n> ", out.String())
}

func TestReadSSE_MultilineData(t *testing.T) {
	var got []string
	err := readSSE(strings.NewReader("data: a\ndata: b\n\ndata: c\n\n"), func(d string) { got = append(got, d) })
	require.NoError(t, err)
	assert.Equal(t, []string{"a\nb", "c"}, got)
}
