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

// lovectl 恋爱顾问 API 的命令行客户端
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"love-agent/pkg/config"
)

var (
	baseURL string
	chatID  string
)

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "lovectl",
		Short:         "恋爱顾问 Agent 命令行客户端",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&baseURL, "api", apiBaseURL(), "API 地址（环境变量 LOVE_AGENT_API_URL）")
	root.PersistentFlags().StringVar(&chatID, "chat-id", "", "会话 ID；为空时由服务端生成")

	root.AddCommand(
		chatCmd(),
		streamCmd(),
		toolsCmd(),
		reportCmd(),
		manusCmd(),
		healthCmd(),
		configCmd(),
	)
	return root
}

func chatCmd() *cobra.Command {
	var interactive bool
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "同步对话；--it 进入交互模式",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(baseURL)
			if interactive {
				return runInteractive(c, cmd.InOrStdin(), cmd.OutOrStdout())
			}
			if len(args) == 0 {
				return fmt.Errorf("请输入消息")
			}
			r, err := c.chat(strings.Join(args, " "), chatID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", r.ChatID, r.Content)
			return nil
		},
	}
	cmd.Flags().BoolVar(&interactive, "it", false, "交互模式，同一会话内连续对话")
	return cmd
}

// runInteractive 逐行读取输入，以流式接口对话；exit/quit 退出
func runInteractive(c *client, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	id := chatID
	for {
		fmt.Fprint(out, "> ")
		line, err := reader.ReadString('\n')
		msg := strings.TrimSpace(line)
		if msg == "exit" || msg == "quit" {
			return nil
		}
		if msg != "" {
			got, serr := c.stream("/api/ai/love_app/chat/sse", msg, id, func(d string) { fmt.Fprint(out, d) })
			fmt.Fprintln(out)
			if serr != nil {
				fmt.Fprintf(out, "错误: %v\n", serr)
			}
			if id == "" {
				id = got
			}
		}
		if err != nil {
			return nil
		}
	}
}

func streamCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stream <message>",
		Short: "流式对话（SSE）",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			id, err := newClient(baseURL).stream("/api/ai/love_app/chat/sse", strings.Join(args, " "), chatID,
				func(d string) { fmt.Fprint(out, d) })
			fmt.Fprintln(out)
			if id != "" {
				fmt.Fprintf(out, "chat_id: %s\n", id)
			}
			return err
		},
	}
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools <message>",
		Short: "可调用工具的对话",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newClient(baseURL).tools(strings.Join(args, " "), chatID)
			if r.Final != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n(steps=%d state=%s)\n", r.Final, r.Steps, r.State)
			}
			return err
		},
	}
}

func reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <message>",
		Short: "生成恋爱报告",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newClient(baseURL).report(strings.Join(args, " "), chatID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, r.Title)
			for i, s := range r.Suggestions {
				fmt.Fprintf(out, "  %d. %s\n", i+1, s)
			}
			return nil
		},
	}
}

func manusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "manus <task>",
		Short: "通用 Agent，按步输出执行结果",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			_, err := newClient(baseURL).stream("/api/ai/manus/chat", strings.Join(args, " "), chatID,
				func(step string) { fmt.Fprintln(out, step) })
			return err
		},
	}
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "健康检查",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newClient(baseURL).health()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%v\n", h["status"])
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "显示本地配置概要（configs/api.yaml 或 LOVE_AGENT_CONFIG）",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadAPIConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "api.port=%d\n", cfg.API.Port)
			fmt.Fprintf(out, "model.defaults.llm=%s\n", cfg.Model.Defaults.LLM)
			fmt.Fprintf(out, "memory.type=%s\n", cfg.Memory.Type)
			fmt.Fprintf(out, "agent.max_steps=%d\n", cfg.Agent.MaxSteps)
			return nil
		},
	}
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
