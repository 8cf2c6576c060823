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
	"time"

	"github.com/redis/go-redis/v9"
)

// Config 存储选择，字段与 config.MemoryConfig 对应
type Config struct {
	Type     string // memory | redis | postgres | sqlite
	DSN      string
	Addr     string
	Password string
	DB       int
	TTL      string
}

// NewStore 根据配置创建会话存储
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewInMemoryStore(), nil
	case "redis":
		var ttl time.Duration
		if cfg.TTL != "" {
			d, err := time.ParseDuration(cfg.TTL)
			if err != nil {
				return nil, fmt.Errorf("memory.ttl: %w", err)
			}
			ttl = d
		}
		addr := cfg.Addr
		if addr == "" {
			addr = "localhost:6379"
		}
		return NewRedisStore(ctx, &redis.Options{Addr: addr, Password: cfg.Password, DB: cfg.DB}, ttl)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("memory.type=postgres 需要配置 memory.dsn")
		}
		return NewPgStore(ctx, cfg.DSN)
	case "sqlite":
		path := cfg.DSN
		if path == "" {
			path = "data/conversations.db"
		}
		return NewSQLiteStore(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported memory type: %s", cfg.Type)
	}
}
