package config

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DAILY_REQUEST_LIMIT", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("MODES_CONFIG_PATH", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.LLM.Provider != "openai" {
		t.Errorf("LLM.Provider = %s, want openai", cfg.LLM.Provider)
	}
	if cfg.LLM.ActiveModel() != "gpt-4o-mini" {
		t.Errorf("LLM.ActiveModel() = %s, want gpt-4o-mini", cfg.LLM.ActiveModel())
	}
	if cfg.LLM.DefaultTemperature != 0.8 {
		t.Errorf("LLM.DefaultTemperature = %v, want 0.8", cfg.LLM.DefaultTemperature)
	}
	if cfg.LLM.DefaultMaxTokens != 800 {
		t.Errorf("LLM.DefaultMaxTokens = %d, want 800", cfg.LLM.DefaultMaxTokens)
	}
	if cfg.Usage.DailyRequestLimit != 10 {
		t.Errorf("Usage.DailyRequestLimit = %d, want 10", cfg.Usage.DailyRequestLimit)
	}
	if cfg.Usage.HistoryLimit != 20 {
		t.Errorf("Usage.HistoryLimit = %d, want 20", cfg.Usage.HistoryLimit)
	}
	if cfg.Payment.SubscriptionPeriod != 30*24*time.Hour {
		t.Errorf("Payment.SubscriptionPeriod = %v, want 720h", cfg.Payment.SubscriptionPeriod)
	}
	if cfg.Auth.JWTSecret != nil {
		t.Error("Auth.JWTSecret should be nil when JWT_SECRET is unset")
	}
	if cfg.Modes == nil || !cfg.Modes.IsValidMode("dialogue") {
		t.Error("Modes should contain the default catalogue")
	}
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unknown provider", key: "LLM_PROVIDER", val: "bard"},
		{name: "short jwt secret", key: "JWT_SECRET", val: "too-short"},
		{name: "negative limit", key: "DAILY_REQUEST_LIMIT", val: "-1"},
		{name: "missing modes file", key: "MODES_CONFIG_PATH", val: "/nonexistent/modes.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := LoadConfig(); err == nil {
				t.Errorf("LoadConfig() with %s=%s error = nil, want error", tt.key, tt.val)
			}
		})
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openrouter")
	t.Setenv("OPENROUTER_MODEL", "meta-llama/llama-3.3-8b-instruct:free")
	t.Setenv("DAILY_REQUEST_LIMIT", "25")
	t.Setenv("EXEMPT_USER_IDS", "admin-1, ,admin-2")
	t.Setenv("DEFAULT_TEMPERATURE", "not-a-float")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/story?sslmode=disable")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.LLM.ActiveModel() != "meta-llama/llama-3.3-8b-instruct:free" {
		t.Errorf("LLM.ActiveModel() = %s", cfg.LLM.ActiveModel())
	}
	if cfg.Usage.DailyRequestLimit != 25 {
		t.Errorf("Usage.DailyRequestLimit = %d, want 25", cfg.Usage.DailyRequestLimit)
	}
	if len(cfg.Usage.ExemptUserIDs) != 2 || !cfg.Usage.IsExempt("admin-2") || cfg.Usage.IsExempt("user") {
		t.Errorf("Usage.ExemptUserIDs = %v, want [admin-1 admin-2]", cfg.Usage.ExemptUserIDs)
	}
	if cfg.LLM.DefaultTemperature != 0.8 {
		t.Errorf("invalid DEFAULT_TEMPERATURE should fall back to 0.8, got %v", cfg.LLM.DefaultTemperature)
	}
	if cfg.Database.GetDSN() != "postgres://u:p@db:5432/story?sslmode=disable" {
		t.Errorf("GetDSN() = %s, want DATABASE_URL", cfg.Database.GetDSN())
	}
}
