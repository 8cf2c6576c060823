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
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

func apiBaseURL() string {
	if u := os.Getenv("LOVE_AGENT_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8123"
}

// client love-agent HTTP API 客户端
type client struct {
	rc *resty.Client
}

func newClient(baseURL string) *client {
	return &client{rc: resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Minute).
		SetHeader("Accept", "application/json")}
}

// chatReply 同步对话的响应
type chatReply struct {
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
	Error   string `json:"error"`
}

// toolsReply 工具对话的响应
type toolsReply struct {
	Final string `json:"final"`
	Steps int    `json:"steps"`
	State string `json:"state"`
	Error string `json:"error"`
}

// report 恋爱报告
type report struct {
	Title       string   `json:"title"`
	Suggestions []string `json:"suggestions"`
	Error       string   `json:"error"`
}

func params(message, chatID string) map[string]string {
	p := map[string]string{"message": message}
	if chatID != "" {
		p["chatId"] = chatID
	}
	return p
}

// getJSON 请求并解析 JSON；非 2xx 时若响应体带 error 字段则一并返回
func (c *client) getJSON(path string, q map[string]string, out any) (string, error) {
	resp, err := c.rc.R().SetQueryParams(q).SetResult(out).SetError(out).Get(path)
	if err != nil {
		return "", err
	}
	chatID := resp.Header().Get("X-Chat-Id")
	if resp.StatusCode() != http.StatusOK {
		return chatID, fmt.Errorf("GET %s: %s", path, strings.TrimSpace(resp.String()))
	}
	return chatID, nil
}

func (c *client) chat(message, chatID string) (*chatReply, error) {
	var out chatReply
	id, err := c.getJSON("/api/ai/love_app/chat/sync", params(message, chatID), &out)
	if out.ChatID == "" {
		out.ChatID = id
	}
	return &out, err
}

func (c *client) tools(message, chatID string) (*toolsReply, error) {
	var out toolsReply
	_, err := c.getJSON("/api/ai/love_app/chat/tools", params(message, chatID), &out)
	return &out, err
}

func (c *client) report(message, chatID string) (*report, error) {
	var out report
	_, err := c.getJSON("/api/ai/love_app/chat/report", params(message, chatID), &out)
	return &out, err
}

func (c *client) health() (map[string]any, error) {
	var out map[string]any
	_, err := c.getJSON("/api/health", nil, &out)
	return out, err
}

// stream 读取 SSE 响应，每个 data 事件调用一次 onData；收到 error 事件时返回其内容作为错误
func (c *client) stream(path, message, chatID string, onData func(string)) (string, error) {
	resp, err := c.rc.R().
		SetQueryParams(params(message, chatID)).
		SetHeader("Accept", "text/event-stream").
		SetDoNotParseResponse(true).
		Get(path)
	if err != nil {
		return "", err
	}
	body := resp.RawBody()
	defer body.Close()
	id := resp.Header().Get("X-Chat-Id")
	if resp.StatusCode() != http.StatusOK {
		b, _ := io.ReadAll(body)
		return id, fmt.Errorf("GET %s: %s", path, strings.TrimSpace(string(b)))
	}
	return id, readSSE(body, onData)
}

// readSSE 解析 text/event-stream；多行 data 以换行拼接
func readSSE(r io.Reader, onData func(string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	var event string
	var data []string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				payload := strings.Join(data, "\n")
				if event == "error" {
					return fmt.Errorf("%s", payload)
				}
				onData(payload)
			}
			event, data = "", nil
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	return sc.Err()
}
