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

package memory

import (
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

const (
	// DefaultBudget 历史权重默认预算
	DefaultBudget = 800000
	// HardCeiling 模型输入的硬上限，预算须严格小于该值
	HardCeiling = 1000000
)

// Weight 单条消息的权重：文本字符数。
// 工具结果消息的 Content 即返回载荷；只有工具调用、没有文本的助手消息权重为 0。
func Weight(msg *schema.Message) int {
	if msg == nil {
		return 0
	}
	return utf8.RuneCountInString(msg.Content)
}

// TotalWeight 消息序列的总权重
func TotalWeight(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += Weight(m)
	}
	return total
}

// BoundHistory 将历史限制在 budget 以内。
// 未超预算时原样返回同一切片；超出时保留第一条（锚点），
// 从最新消息往前累加（起点为锚点权重），遇到第一条放不下的消息即停止，
// 结果为 锚点 + 最近的一段连续消息，保持原有顺序。
func BoundHistory(history []*schema.Message, budget int) []*schema.Message {
	if len(history) == 0 || TotalWeight(history) <= budget {
		return history
	}
	anchor := history[0]
	total := Weight(anchor)
	start := len(history)
	for i := len(history) - 1; i >= 1; i-- {
		w := Weight(history[i])
		if total+w > budget {
			break
		}
		total += w
		start = i
	}
	out := make([]*schema.Message, 0, 1+len(history)-start)
	out = append(out, anchor)
	out = append(out, history[start:]...)
	return out
}

// DropOrphanToolResults 返回发送给模型的视图：去掉找不到对应助手工具调用的工具结果消息。
// 截断或窗口可能切断 tool_calls 与其结果的配对，而模型接口拒绝孤立的工具结果。
// 不修改入参。
func DropOrphanToolResults(history []*schema.Message) []*schema.Message {
	seen := make(map[string]bool)
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		if m == nil {
			continue
		}
		if m.Role == schema.Assistant {
			for _, tc := range m.ToolCalls {
				seen[tc.ID] = true
			}
		}
		if m.Role == schema.Tool && !seen[m.ToolCallID] {
			continue
		}
		out = append(out, m)
	}
	return out
}
