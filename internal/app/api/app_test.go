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

package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"love-agent/internal/app"
	"love-agent/internal/model/llm/llmtest"
	"love-agent/pkg/config"
)

func TestNewApp_RequiresBootstrap(t *testing.T) {
	_, err := NewApp(nil)
	assert.Error(t, err)
}

func TestNewApp_WiresRouter(t *testing.T) {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.API.Timeout = "30s"
	b, err := app.NewBootstrapWithModel(context.Background(), cfg, &llmtest.Model{})
	require.NoError(t, err)

	a, err := NewApp(b)
	require.NoError(t, err)
	assert.NotNil(t, a.router)
	assert.NoError(t, a.Shutdown(context.Background()))
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, parseDuration("30s", 0))
	assert.Equal(t, time.Minute, parseDuration("bad", time.Minute))
	assert.Equal(t, time.Duration(0), parseDuration("", 0))
}
