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

// Package builtin Agent 内置工具：发送邮件、图片搜索与结束任务
package builtin

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

// TerminatePayload 结束工具的固定返回
const TerminatePayload = "任务结束"

type terminateInput struct{}

// NewTerminateTool 结束任务的哨兵工具；name 为空时使用 doTerminate
func NewTerminateTool(name string) tool.InvokableTool {
	if name == "" {
		name = "doTerminate"
	}
	info := &schema.ToolInfo{
		Name: name,
		Desc: "Terminate the interaction when the request is met OR if the assistant cannot proceed further with the task. " +
			"When you have finished all the tasks, call this tool to end the work.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	}
	return utils.NewTool(info, func(ctx context.Context, _ terminateInput) (string, error) {
		return TerminatePayload, nil
	})
}
