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
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/schema"
)

// DefaultWindow 普通对话保留的最近消息条数
const DefaultWindow = 20

// InMemoryStore 进程内会话历史
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]*schema.Message
}

// NewInMemoryStore 创建进程内存储
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string][]*schema.Message)}
}

// Get 返回消息副本，调用方修改切片不影响存储
func (s *InMemoryStore) Get(_ context.Context, conversationID string) ([]*schema.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.sessions[conversationID]
	out := make([]*schema.Message, len(list))
	copy(out, list)
	return out, nil
}

// Append 追加消息
func (s *InMemoryStore) Append(_ context.Context, conversationID string, msgs ...*schema.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[conversationID] = append(s.sessions[conversationID], msgs...)
	return nil
}

// Trim 只保留最近 keep 条；底层数组重新分配以释放旧消息
func (s *InMemoryStore) Trim(_ context.Context, conversationID string, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.sessions[conversationID]
	if !ok || len(list) <= keep {
		return nil
	}
	s.sessions[conversationID] = append([]*schema.Message(nil), list[len(list)-keep:]...)
	return nil
}

// WindowStore 每个会话只保留最近 size 条消息的装饰器
type WindowStore struct {
	inner Store
	size  int
}

// NewWindowStore size ≤ 0 时使用 DefaultWindow
func NewWindowStore(inner Store, size int) *WindowStore {
	if size <= 0 {
		size = DefaultWindow
	}
	return &WindowStore{inner: inner, size: size}
}

// Get 返回最近 size 条消息
func (w *WindowStore) Get(ctx context.Context, conversationID string) ([]*schema.Message, error) {
	list, err := w.inner.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if len(list) > w.size {
		list = list[len(list)-w.size:]
	}
	return list, nil
}

// Append 写入底层存储；底层支持 Trimmer 时随即裁掉窗口外的消息
func (w *WindowStore) Append(ctx context.Context, conversationID string, msgs ...*schema.Message) error {
	if err := w.inner.Append(ctx, conversationID, msgs...); err != nil {
		return err
	}
	if t, ok := w.inner.(Trimmer); ok && len(msgs) > 0 {
		if err := t.Trim(ctx, conversationID, w.size); err != nil {
			return fmt.Errorf("trim %s to %d: %w", conversationID, w.size, err)
		}
	}
	return nil
}

// PrefixStore 为会话 ID 加前缀，让多个对话入口共用一个底层存储而互不可见
type PrefixStore struct {
	inner  Store
	prefix string
}

// NewPrefixStore 创建带前缀的存储视图
func NewPrefixStore(inner Store, prefix string) *PrefixStore {
	return &PrefixStore{inner: inner, prefix: prefix}
}

func (p *PrefixStore) Get(ctx context.Context, conversationID string) ([]*schema.Message, error) {
	return p.inner.Get(ctx, p.prefix+conversationID)
}

func (p *PrefixStore) Append(ctx context.Context, conversationID string, msgs ...*schema.Message) error {
	return p.inner.Append(ctx, p.prefix+conversationID, msgs...)
}

// Trim 底层不支持裁剪时为空操作
func (p *PrefixStore) Trim(ctx context.Context, conversationID string, keep int) error {
	if t, ok := p.inner.(Trimmer); ok {
		return t.Trim(ctx, p.prefix+conversationID, keep)
	}
	return nil
}
