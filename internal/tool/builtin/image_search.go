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

package builtin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/go-resty/resty/v2"
)

// DefaultImageSearchURL Pixabay 图片搜索 API
const DefaultImageSearchURL = "https://pixabay.com/api/"

// ImageSearchConfig 图片搜索配置
type ImageSearchConfig struct {
	BaseURL string
	APIKey  string
	PerPage int
	Timeout time.Duration
}

type imageSearchInput struct {
	Query string `json:"query"`
}

type pixabayResponse struct {
	Total int `json:"total"`
	Hits  []struct {
		WebformatURL string `json:"webformatURL"`
	} `json:"hits"`
}

// NewImageSearchTool 按关键词搜索图片，返回中等尺寸图片 URL（逗号分隔）
func NewImageSearchTool(cfg ImageSearchConfig) tool.InvokableTool {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultImageSearchURL
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := resty.New().SetTimeout(cfg.Timeout)
	info := &schema.ToolInfo{
		Name: "searchImage",
		Desc: "Search images from Pixabay (free stock photos)",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "Search query keyword, e.g., 'cat', 'mountain'", Required: true},
		}),
	}
	return utils.NewTool(info, func(ctx context.Context, in imageSearchInput) (string, error) {
		urls, err := searchImages(ctx, client, cfg, in.Query)
		if err != nil {
			return "Error searching image: " + err.Error(), nil
		}
		if len(urls) == 0 {
			return "No images found for query: " + in.Query, nil
		}
		return strings.Join(urls, ","), nil
	})
}

func searchImages(ctx context.Context, client *resty.Client, cfg ImageSearchConfig, query string) ([]string, error) {
	var out pixabayResponse
	resp, err := client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":        cfg.APIKey,
			"q":          query,
			"image_type": "photo",
			"per_page":   strconv.Itoa(cfg.PerPage),
			"safesearch": "true",
		}).
		SetResult(&out).
		Get(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	urls := make([]string, 0, len(out.Hits))
	for _, h := range out.Hits {
		if strings.TrimSpace(h.WebformatURL) != "" {
			urls = append(urls, h.WebformatURL)
		}
	}
	return urls, nil
}
