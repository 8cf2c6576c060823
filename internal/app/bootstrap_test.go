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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"love-agent/internal/model/llm/llmtest"
	"love-agent/pkg/config"
)

func defaultConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Log.Format = "text"
	cfg.ApplyDefaults()
	return cfg
}

func TestNewBootstrapWithModel_Defaults(t *testing.T) {
	b, err := NewBootstrapWithModel(context.Background(), defaultConfig(), &llmtest.Model{})
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, []string{"doTerminate"}, b.Registry.Names())
	assert.NotNil(t, b.App)
	assert.NotNil(t, b.Secrets)
}

func TestNewBootstrapWithModel_ResolvesToolSecrets(t *testing.T) {
	t.Setenv("LOVE_AGENT_TEST_PIXABAY", "pk-test")
	cfg := defaultConfig()
	cfg.Secrets.Provider = "env"
	cfg.Tools.ImageSearch = config.ImageSearchConfig{Enable: true, APIKey: "secret:LOVE_AGENT_TEST_PIXABAY", PerPage: 3}
	cfg.Tools.Email = config.EmailConfig{Enable: true, Host: "smtp.qq.com", Port: 465, From: "me@qq.com", AuthCode: "plain-code"}

	b, err := NewBootstrapWithModel(context.Background(), cfg, &llmtest.Model{})
	require.NoError(t, err)
	assert.Equal(t, []string{"sendEmail", "searchImage", "doTerminate"}, b.Registry.Names())
}

func TestNewBootstrapWithModel_MissingSecret(t *testing.T) {
	cfg := defaultConfig()
	cfg.Secrets.Provider = "memory"
	cfg.Tools.ImageSearch = config.ImageSearchConfig{Enable: true, APIKey: "secret:pixabay"}

	_, err := NewBootstrapWithModel(context.Background(), cfg, &llmtest.Model{})
	assert.ErrorContains(t, err, "tools.image_search.api_key")
}

func TestNewBootstrap_RequiresModelConfig(t *testing.T) {
	_, err := NewBootstrap(context.Background(), defaultConfig())
	assert.ErrorContains(t, err, "model.defaults.llm")

	_, err = NewBootstrap(context.Background(), nil)
	assert.Error(t, err)
}
