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
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "love:conversation:"

// RedisStore 每个会话一个 list，元素为消息 JSON
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore 连接 Redis 并 Ping；ttl > 0 时每次追加后刷新会话过期时间
func NewRedisStore(ctx context.Context, opts *redis.Options, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func redisKey(conversationID string) string {
	return redisKeyPrefix + conversationID
}

// Get 读取整个 list
func (s *RedisStore) Get(ctx context.Context, conversationID string) ([]*schema.Message, error) {
	raw, err := s.client.LRange(ctx, redisKey(conversationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	out := make([]*schema.Message, 0, len(raw))
	for i, r := range raw {
		var m schema.Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("decode message %d of %s: %w", i, conversationID, err)
		}
		out = append(out, &m)
	}
	return out, nil
}

// Append RPUSH 与 EXPIRE 在同一事务中执行
func (s *RedisStore) Append(ctx context.Context, conversationID string, msgs ...*schema.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		values = append(values, b)
	}
	key := redisKey(conversationID)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, values...)
		if s.ttl > 0 {
			p.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append: %w", err)
	}
	return nil
}

// Trim LTRIM 保留 list 尾部 keep 个元素
func (s *RedisStore) Trim(ctx context.Context, conversationID string, keep int) error {
	if keep <= 0 {
		return s.client.Del(ctx, redisKey(conversationID)).Err()
	}
	if err := s.client.LTrim(ctx, redisKey(conversationID), int64(-keep), -1).Err(); err != nil {
		return fmt.Errorf("redis ltrim: %w", err)
	}
	return nil
}

// Close 关闭客户端
func (s *RedisStore) Close() error {
	return s.client.Close()
}
