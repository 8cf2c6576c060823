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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := writeConfig(t, `
api:
  port: 9000
  host: "127.0.0.1"
agent:
  max_steps: 6
stream:
  max_chars: 120
memory:
  type: "sqlite"
  dsn: "/tmp/love.db"
log:
  level: "debug"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port: got %d", cfg.API.Port)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host: got %q", cfg.API.Host)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q", cfg.Log.Level)
	}
	if cfg.Agent.MaxSteps != 6 {
		t.Errorf("Agent.MaxSteps: got %d", cfg.Agent.MaxSteps)
	}
	if cfg.Stream.MaxChars != 120 {
		t.Errorf("Stream.MaxChars: got %d", cfg.Stream.MaxChars)
	}
	if cfg.Memory.Type != "sqlite" || cfg.Memory.DSN != "/tmp/love.db" {
		t.Errorf("Memory: got %+v", cfg.Memory)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "api:\n  port: 8080\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Agent.MaxSteps != DefaultMaxSteps {
		t.Errorf("Agent.MaxSteps: got %d", cfg.Agent.MaxSteps)
	}
	if cfg.Agent.HistoryBudget != DefaultHistoryBudget {
		t.Errorf("Agent.HistoryBudget: got %d", cfg.Agent.HistoryBudget)
	}
	if cfg.Agent.TerminateTool != "doTerminate" {
		t.Errorf("Agent.TerminateTool: got %q", cfg.Agent.TerminateTool)
	}
	if cfg.Stream.QuestionWindow != 20 || cfg.Stream.QuestionTail != 10 || cfg.Stream.MaxChars != 200 {
		t.Errorf("Stream: got %+v", cfg.Stream)
	}
	if len(cfg.Stream.IdentityPhrases) != len(DefaultIdentityPhrases) {
		t.Errorf("IdentityPhrases: got %v", cfg.Stream.IdentityPhrases)
	}
	if cfg.Memory.Type != "memory" || cfg.Memory.Window != 20 {
		t.Errorf("Memory: got %+v", cfg.Memory)
	}
}

func TestLoadConfig_BudgetMustStayBelowCeiling(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "agent:\n  history_budget: 1000000\n"))
	if err == nil {
		t.Fatal("expected error for budget at ceiling")
	}
	cfg, err := LoadConfig(writeConfig(t, "agent:\n  history_budget: 999999\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Agent.HistoryBudget != 999999 {
		t.Errorf("Agent.HistoryBudget: got %d", cfg.Agent.HistoryBudget)
	}
}

func TestLoadConfig_EnvSubstitution(t *testing.T) {
	t.Setenv("LOVE_TEST_OPENAI_KEY", "sk-test")
	t.Setenv("LOVE_TEST_PIXABAY_KEY", "px-test")
	path := writeConfig(t, `
model:
  llm:
    providers:
      openai:
        api_key: "${LOVE_TEST_OPENAI_KEY}"
tools:
  image_search:
    api_key: "${LOVE_TEST_PIXABAY_KEY}"
  email:
    auth_code: "${LOVE_TEST_UNSET_VAR}"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got := cfg.Model.LLM.Providers["openai"].APIKey; got != "sk-test" {
		t.Errorf("openai api_key: got %q", got)
	}
	if cfg.Tools.ImageSearch.APIKey != "px-test" {
		t.Errorf("image_search api_key: got %q", cfg.Tools.ImageSearch.APIKey)
	}
	if cfg.Tools.Email.AuthCode != "${LOVE_TEST_UNSET_VAR}" {
		t.Errorf("unset env should keep placeholder, got %q", cfg.Tools.Email.AuthCode)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
