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

// Package memory 对话历史：按会话有序存储的消息序列，以及按权重预算的截断策略
package memory

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// Store 会话历史存储；消息按追加顺序返回，只追加不原地修改
type Store interface {
	// Get 返回会话的全部消息（按追加顺序）；不存在的会话返回空切片
	Get(ctx context.Context, conversationID string) ([]*schema.Message, error)
	// Append 原子地追加一批消息
	Append(ctx context.Context, conversationID string, msgs ...*schema.Message) error
}

// Trimmer 支持按条数裁剪的存储；WindowStore 追加后用它丢弃窗口外的旧消息
type Trimmer interface {
	// Trim 只保留会话最近 keep 条消息
	Trim(ctx context.Context, conversationID string, keep int) error
}

// Closer 持有连接的存储实现 Close
type Closer interface {
	Close() error
}
