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

package stream

import (
	"context"
	"errors"
	"io"

	"github.com/cloudwego/eino/schema"

	"love-agent/pkg/log"
	"love-agent/pkg/metrics"
)

// ErrConsumerClosed 下游不再接收增量（如客户端断开）
var ErrConsumerClosed = errors.New("stream consumer closed")

// EmitFunc 输出一个增量；返回 false 表示下游已关闭
type EmitFunc func(delta string) bool

// Consume 按到达顺序消费模型流直到终止，终止后立即关闭上游不再读取。
// 返回的 State 在出错时反映已处理的部分。
func (t *Terminator) Consume(ctx context.Context, src *schema.StreamReader[*schema.Message], emit EmitFunc, logger *log.Logger) (State, error) {
	logger = log.OrNop(logger)
	defer src.Close()

	var st State
	var delta string
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		msg, err := src.Recv()
		if errors.Is(err, io.EOF) {
			st, delta = t.Finish(st)
			if delta != "" && !emit(delta) {
				return st, ErrConsumerClosed
			}
			break
		}
		if err != nil {
			return st, err
		}
		if msg == nil {
			continue
		}
		st, delta = t.Step(st, msg.Content)
		if delta != "" && !emit(delta) {
			return st, ErrConsumerClosed
		}
		if st.Finalized {
			break
		}
	}

	metrics.StreamStopTotal.WithLabelValues(string(st.Rule)).Inc()
	if st.Regressed {
		logger.Warn("流式输出可见内容发生回退", "rule", string(st.Rule))
	}
	logger.Debug("流式输出终止", "rule", string(st.Rule), "chars", len([]rune(st.Emitted)))
	return st, nil
}
