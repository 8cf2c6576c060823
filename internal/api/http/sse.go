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
	"io"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
)

// sseWriter 以 text/event-stream 帧格式写出事件；底层为 io.Pipe，由 Hertz 读取并分块发送
type sseWriter struct {
	pw *io.PipeWriter
}

// startSSE 设置 SSE 响应头并挂载流式响应体，之后只能通过返回的 writer 写出
func startSSE(c *app.RequestContext) *sseWriter {
	pr, pw := io.Pipe()
	c.SetStatusCode(200)
	c.Response.Header.Set("Content-Type", "text/event-stream; charset=utf-8")
	c.Response.Header.Set("Cache-Control", "no-cache")
	c.Response.Header.Set("Connection", "keep-alive")
	c.Response.Header.Set("X-Accel-Buffering", "no")
	c.SetBodyStream(pr, -1)
	return &sseWriter{pw: pw}
}

// Data 写出一个 data 事件；客户端断开时返回 false
func (w *sseWriter) Data(data string) bool {
	return w.write("", data)
}

// Event 写出带事件名的事件
func (w *sseWriter) Event(name, data string) bool {
	return w.write(name, data)
}

func (w *sseWriter) write(event, data string) bool {
	if data == "" && event == "" {
		return true
	}
	_, err := io.WriteString(w.pw, frame(event, data))
	return err == nil
}

// Close 结束事件流
func (w *sseWriter) Close() {
	_ = w.pw.Close()
}

// frame 多行数据拆为多个 data 行，以空行结束
func frame(event, data string) string {
	var b strings.Builder
	if event != "" {
		b.WriteString("event: ")
		b.WriteString(event)
		b.WriteByte('\n')
	}
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(strings.TrimSuffix(line, "\r"))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}
