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

package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"love-agent/pkg/errors"
)

// LoveReport 恋爱报告
type LoveReport struct {
	Title       string   `json:"title"`
	Suggestions []string `json:"suggestions"`
}

// ParseReport 从模型输出中解析报告，容忍 ```json 代码块与前后说明文字
func ParseReport(content string) (*LoveReport, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: 模型输出中没有 JSON 对象", errors.ErrInvalidArg)
	}
	var r LoveReport
	if err := json.Unmarshal([]byte(content[start:end+1]), &r); err != nil {
		return nil, fmt.Errorf("%w: 解析恋爱报告失败: %v", errors.ErrInvalidArg, err)
	}
	if r.Title == "" {
		return nil, fmt.Errorf("%w: 恋爱报告缺少标题", errors.ErrInvalidArg)
	}
	if r.Suggestions == nil {
		r.Suggestions = []string{}
	}
	return &r, nil
}
