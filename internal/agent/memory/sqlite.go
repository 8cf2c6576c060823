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
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/schema"
	_ "modernc.org/sqlite"
)

// SQLiteStore 单机部署用的文件存储
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore 打开（或创建）dbPath，":memory:" 为内存库
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// 内存库每个连接各自独立；SQLite 本身也串行化写入
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS conversation_messages (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		payload         TEXT NOT NULL,
		created_at      TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_conversation_messages_conv ON conversation_messages (conversation_id, id);
	`)
	return err
}

// Get 按 id 顺序读取
func (s *SQLiteStore) Get(ctx context.Context, conversationID string) ([]*schema.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM conversation_messages WHERE conversation_id = ? ORDER BY id`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", conversationID, err)
	}
	defer rows.Close()
	out := []*schema.Message{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var m schema.Message
		if err := json.Unmarshal([]byte(payload), &m); err != nil {
			return nil, fmt.Errorf("decode message of %s: %w", conversationID, err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// Append 在一个事务内插入整批消息
func (s *SQLiteStore) Append(ctx context.Context, conversationID string, msgs ...*schema.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, m := range msgs {
		payload, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_messages (conversation_id, payload) VALUES (?, ?)`,
			conversationID, string(payload)); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return tx.Commit()
}

// Trim 删除最近 keep 条之前的消息
func (s *SQLiteStore) Trim(ctx context.Context, conversationID string, keep int) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM conversation_messages
		WHERE conversation_id = ? AND id NOT IN (
			SELECT id FROM conversation_messages
			WHERE conversation_id = ? ORDER BY id DESC LIMIT ?
		)`, conversationID, conversationID, max(keep, 0))
	if err != nil {
		return fmt.Errorf("trim %s: %w", conversationID, err)
	}
	return nil
}

// Close 关闭数据库
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
