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

package agent

import (
	"sync"

	"github.com/cloudwego/eino/schema"
)

// Session 一个会话在单轮内的工作状态；每轮开始时从 store 重新加载
type Session struct {
	ID    string
	State State
	// NextStepPromptAdded 续写提示是否已注入；由历史推导，每个会话最多注入一次
	NextStepPromptAdded bool

	messages []*schema.Message
	// pending think 返回的待执行工具调用（助手消息），act 时写入历史
	pending *schema.Message
	// produced 本轮新增、待持久化的消息
	produced []*schema.Message
}

func newSession(id string, history []*schema.Message, nudge string) *Session {
	s := &Session{ID: id, State: StateFinished}
	s.messages = append(s.messages, history...)
	if nudge != "" {
		for _, m := range history {
			if m.Role == schema.User && m.Content == nudge {
				s.NextStepPromptAdded = true
				break
			}
		}
	}
	return s
}

// Messages 返回当前工作历史的副本
func (s *Session) Messages() []*schema.Message {
	return append([]*schema.Message(nil), s.messages...)
}

func (s *Session) record(msgs ...*schema.Message) {
	s.messages = append(s.messages, msgs...)
	s.produced = append(s.produced, msgs...)
}

// sessionSet 记录正在执行轮次的会话 ID，轮次结束即移除
type sessionSet struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// acquire 标记会话进入轮次；已在执行时返回 false
func (ss *sessionSet) acquire(id string) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if _, ok := ss.active[id]; ok {
		return false
	}
	ss.active[id] = struct{}{}
	return true
}

func (ss *sessionSet) release(id string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.active, id)
}

func (ss *sessionSet) len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.active)
}
