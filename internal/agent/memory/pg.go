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

	"github.com/cloudwego/eino/schema"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS conversation_messages (
	id              BIGSERIAL PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	payload         JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_conversation_messages_conv ON conversation_messages (conversation_id, id);
`

// PgStore PostgreSQL 实现；id 自增保证追加顺序
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore 创建连接池、Ping 并确保表存在
func NewPgStore(ctx context.Context, dsn string) (*PgStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create conversation_messages: %w", err)
	}
	return &PgStore{pool: pool}, nil
}

// Get 按 id 顺序读取
func (s *PgStore) Get(ctx context.Context, conversationID string) ([]*schema.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM conversation_messages WHERE conversation_id = $1 ORDER BY id`,
		conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*schema.Message{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var m schema.Message
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("decode message of %s: %w", conversationID, err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// Append 在一个事务内插入整批消息
func (s *PgStore) Append(ctx context.Context, conversationID string, msgs ...*schema.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, m := range msgs {
			payload, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("encode message: %w", err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO conversation_messages (conversation_id, payload) VALUES ($1, $2)`,
				conversationID, payload); err != nil {
				return err
			}
		}
		return nil
	})
}

// Trim 删除最近 keep 条之前的消息
func (s *PgStore) Trim(ctx context.Context, conversationID string, keep int) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM conversation_messages
		WHERE conversation_id = $1 AND id NOT IN (
			SELECT id FROM conversation_messages
			WHERE conversation_id = $1 ORDER BY id DESC LIMIT $2
		)`, conversationID, max(keep, 0))
	if err != nil {
		return fmt.Errorf("trim %s: %w", conversationID, err)
	}
	return nil
}

// Close 关闭连接池
func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}
