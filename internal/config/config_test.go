// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mfaulds/chatspend/internal/chat"
)

// clearEnvOverrides blanks every environment variable the config layer
// reads, so tests see only what they set themselves.
func clearEnvOverrides(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENAI_API_KEY",
		"OPENAI_BASE_URL",
		"CHATSPEND_MODEL",
		"CHATSPEND_SYSTEM_PROMPT",
		"CHATSPEND_MAX_TOKENS",
		"CHATSPEND_NO_MARKDOWN",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v, want nil", err)
	}
	if cfg.DefaultModel != chat.DefaultModel {
		t.Errorf("DefaultModel = %q, want %q", cfg.DefaultModel, chat.DefaultModel)
	}
	if !cfg.UI.Markdown || !cfg.UI.ShowCost {
		t.Error("markdown and cost display should default to enabled")
	}
}

func TestSetDefaultsFillsZeros(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	want := Default()
	if cfg.DefaultModel != want.DefaultModel {
		t.Errorf("DefaultModel = %q, want %q", cfg.DefaultModel, want.DefaultModel)
	}
	if cfg.SystemPrompt != want.SystemPrompt {
		t.Errorf("SystemPrompt = %q, want %q", cfg.SystemPrompt, want.SystemPrompt)
	}
	if cfg.MaxTokens != want.MaxTokens {
		t.Errorf("MaxTokens = %d, want %d", cfg.MaxTokens, want.MaxTokens)
	}
	if cfg.API.BaseURL != want.API.BaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.API.BaseURL, want.API.BaseURL)
	}
	if cfg.UI.Theme != want.UI.Theme {
		t.Errorf("Theme = %q, want %q", cfg.UI.Theme, want.UI.Theme)
	}
}

func TestSetDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{DefaultModel: "gpt-4", MaxTokens: 256}
	cfg.SetDefaults()

	if cfg.DefaultModel != "gpt-4" {
		t.Errorf("DefaultModel = %q, want gpt-4", cfg.DefaultModel)
	}
	if cfg.MaxTokens != 256 {
		t.Errorf("MaxTokens = %d, want 256", cfg.MaxTokens)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "unknown model",
			mutate:    func(c *Config) { c.DefaultModel = "gpt-9000" },
			wantField: "default_model",
		},
		{
			name:      "negative max tokens",
			mutate:    func(c *Config) { c.MaxTokens = -1 },
			wantField: "max_tokens",
		},
		{
			name:      "negative timeout",
			mutate:    func(c *Config) { c.API.TimeoutSecs = -5 },
			wantField: "api.timeout_secs",
		},
		{
			name:      "bad theme",
			mutate:    func(c *Config) { c.UI.Theme = "neon" },
			wantField: "ui.theme",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantField) {
				t.Errorf("error %q does not mention field %q", err, tt.wantField)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("OPENAI_API_KEY", "sk-test123")
	t.Setenv("CHATSPEND_MODEL", "gpt-4")
	t.Setenv("CHATSPEND_MAX_TOKENS", "512")
	t.Setenv("CHATSPEND_NO_MARKDOWN", "1")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.API.Key != "sk-test123" {
		t.Errorf("API.Key = %q", cfg.API.Key)
	}
	if cfg.DefaultModel != "gpt-4" {
		t.Errorf("DefaultModel = %q, want gpt-4", cfg.DefaultModel)
	}
	if cfg.MaxTokens != 512 {
		t.Errorf("MaxTokens = %d, want 512", cfg.MaxTokens)
	}
	if cfg.UI.Markdown {
		t.Error("Markdown should be disabled by CHATSPEND_NO_MARKDOWN=1")
	}
}

func TestApplyEnvOverridesIgnoresBadValues(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("CHATSPEND_MAX_TOKENS", "not-a-number")

	cfg := Default()
	want := cfg.MaxTokens
	cfg.ApplyEnvOverrides()

	if cfg.MaxTokens != want {
		t.Errorf("MaxTokens = %d, want unchanged %d", cfg.MaxTokens, want)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	clearEnvOverrides(t)

	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.DefaultModel = "gpt-4"
	cfg.SystemPrompt = "You are terse."
	cfg.MaxTokens = 2048
	cfg.API.BaseURL = "http://localhost:8080/v1"
	cfg.UI.Markdown = false
	cfg.UI.Theme = "light"

	if err := SaveTOML(cfg, path); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file permissions = %o, want 0600", perm)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatal(err)
	}

	if loaded.DefaultModel != cfg.DefaultModel {
		t.Errorf("DefaultModel = %q, want %q", loaded.DefaultModel, cfg.DefaultModel)
	}
	if loaded.SystemPrompt != cfg.SystemPrompt {
		t.Errorf("SystemPrompt = %q, want %q", loaded.SystemPrompt, cfg.SystemPrompt)
	}
	if loaded.MaxTokens != cfg.MaxTokens {
		t.Errorf("MaxTokens = %d, want %d", loaded.MaxTokens, cfg.MaxTokens)
	}
	if loaded.API.BaseURL != cfg.API.BaseURL {
		t.Errorf("BaseURL = %q, want %q", loaded.API.BaseURL, cfg.API.BaseURL)
	}
	if loaded.UI.Markdown != cfg.UI.Markdown {
		t.Errorf("Markdown = %v, want %v", loaded.UI.Markdown, cfg.UI.Markdown)
	}
	if loaded.UI.Theme != cfg.UI.Theme {
		t.Errorf("Theme = %q, want %q", loaded.UI.Theme, cfg.UI.Theme)
	}
}

func TestLoadFromPathRejectsInvalid(t *testing.T) {
	clearEnvOverrides(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	body := "default_model = \"gpt-9000\"\n"
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFromPath(path); err == nil {
		t.Fatal("LoadFromPath accepted config with unpriced model")
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSessionDefaults(t *testing.T) {
	cfg := Default()
	cfg.DefaultModel = "gpt-4"
	cfg.SystemPrompt = "hi"
	cfg.MaxTokens = 99

	d := cfg.SessionDefaults()
	if d.Model != "gpt-4" || d.SystemPrompt != "hi" || d.MaxTokens != 99 {
		t.Errorf("SessionDefaults() = %+v", d)
	}
}

func TestGlobalSetAndReset(t *testing.T) {
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	custom := Default()
	custom.DefaultModel = "gpt-4"
	SetGlobal(custom)

	if got := Global(); got.DefaultModel != "gpt-4" {
		t.Errorf("Global().DefaultModel = %q, want gpt-4", got.DefaultModel)
	}
}

func TestValidateErrorsMessage(t *testing.T) {
	errs := ValidateErrors{
		{Field: "a", Message: "bad"},
		{Field: "b", Message: "worse"},
	}
	got := errs.Error()
	if !strings.Contains(got, "a: bad") || !strings.Contains(got, "b: worse") {
		t.Errorf("Error() = %q", got)
	}
}
