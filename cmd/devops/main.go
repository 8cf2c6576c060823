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

// devops 启动 Eino Dev 调试服务并注册对话相关 Graph，供 IDE 插件（Eino Dev）连接后进行可视化调试。
// 使用：go run ./cmd/devops；在 IDE 中配置连接地址 127.0.0.1:52538 后选择编排进行 Test Run。
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino-ext/devops"
	"github.com/cloudwego/eino/compose"
	"github.com/joho/godotenv"

	"love-agent/internal/app"
	"love-agent/internal/stream"
	"love-agent/pkg/config"
	"love-agent/pkg/tracing"
)

// TurnInput 调试图输入
type TurnInput struct {
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
	// Suppress 终止器图中是否启用身份介绍过滤
	Suppress bool `json:"suppress"`
}

// TurnOutput 调试图输出
type TurnOutput struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
	Rule   string `json:"rule,omitempty"`
}

func validate(_ context.Context, in *TurnInput) (*TurnInput, error) {
	if in == nil || in.Message == "" {
		return nil, fmt.Errorf("message 不能为空")
	}
	if in.ChatID == "" {
		in.ChatID = app.NewChatID()
	}
	return in, nil
}

// registerTerminatorGraph 把 message 当作模型输出逐字喂给终止器，观察截断位置与命中规则
func registerTerminatorGraph(ctx context.Context, cfg config.StreamConfig) error {
	g := compose.NewGraph[*TurnInput, *TurnOutput]()

	_ = g.AddLambdaNode("validate", compose.InvokableLambda(validate))
	_ = g.AddLambdaNode("terminate", compose.InvokableLambda(func(ctx context.Context, in *TurnInput) (*TurnOutput, error) {
		t := stream.New(stream.FromConfig(cfg), in.Suppress)
		var st stream.State
		for _, r := range in.Message {
			if st, _ = t.Step(st, string(r)); st.Finalized {
				break
			}
		}
		st, _ = t.Finish(st)
		return &TurnOutput{ChatID: in.ChatID, Text: st.Text(), Rule: string(st.Rule)}, nil
	}))

	_ = g.AddEdge(compose.START, "validate")
	_ = g.AddEdge("validate", "terminate")
	_ = g.AddEdge("terminate", compose.END)

	if _, err := g.Compile(ctx, compose.WithGraphName("stream_terminator")); err != nil {
		return fmt.Errorf("compile terminator graph: %w", err)
	}
	return nil
}

// registerChatGraph 一轮同步对话（需要可用的模型配置）
func registerChatGraph(ctx context.Context, b *app.Bootstrap) error {
	g := compose.NewGraph[*TurnInput, *TurnOutput]()

	_ = g.AddLambdaNode("validate", compose.InvokableLambda(validate))
	_ = g.AddLambdaNode("chat", compose.InvokableLambda(func(ctx context.Context, in *TurnInput) (*TurnOutput, error) {
		reply, err := b.App.Chat(ctx, in.ChatID, in.Message)
		if err != nil {
			return nil, err
		}
		return &TurnOutput{ChatID: in.ChatID, Text: reply}, nil
	}))

	_ = g.AddEdge(compose.START, "validate")
	_ = g.AddEdge("validate", "chat")
	_ = g.AddEdge("chat", compose.END)

	if _, err := g.Compile(ctx, compose.WithGraphName("love_chat")); err != nil {
		return fmt.Errorf("compile chat graph: %w", err)
	}
	return nil
}

func main() {
	ctx := context.Background()
	_ = godotenv.Load()

	// 1. 先初始化 Eino Dev 调试服务（必须在任何 Compile 之前调用）
	if err := devops.Init(ctx); err != nil {
		log.Fatalf("[eino dev] init failed: %v", err)
	}

	cfg, err := config.LoadAPIConfig()
	if err != nil {
		log.Printf("[eino dev] 加载配置失败，使用默认配置: %v", err)
		cfg = &config.Config{}
		cfg.ApplyDefaults()
	}
	if tc := cfg.Monitoring.Tracing; tc.Enable && tc.ExportEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, tracing.OTelConfig{
			ServiceName:    "love-agent-devops",
			ExportEndpoint: tc.ExportEndpoint,
			Insecure:       tc.Insecure,
		})
		if err != nil {
			log.Printf("[eino dev] tracing init failed: %v", err)
		} else {
			defer func() { _ = tp.Shutdown(context.Background()) }()
		}
	}

	// 2. 注册并编译调试图，插件会通过已编译的 artifact 列表展示
	if err := registerTerminatorGraph(ctx, cfg.Stream); err != nil {
		log.Fatalf("[eino dev] register terminator graph: %v", err)
	}
	b, err := app.NewBootstrap(ctx, cfg)
	if err != nil {
		log.Printf("[eino dev] 模型不可用，跳过 love_chat 图: %v", err)
	} else {
		defer b.Close()
		if err := registerChatGraph(ctx, b); err != nil {
			log.Fatalf("[eino dev] register chat graph: %v", err)
		}
	}

	log.Println("[eino dev] server listening on 127.0.0.1:52538; open Eino Dev in IDE and configure this address to debug")
	log.Println("[eino dev] press Ctrl+C to exit")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	log.Println("[eino dev] shutting down")
}
