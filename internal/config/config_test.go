package config

import "testing"

func TestLoadDefaultsUseMockProviders(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.STTProvider != "mock" {
		t.Fatalf("STTProvider = %q, want %q", cfg.STTProvider, "mock")
	}
	if cfg.LLMProvider != "mock" {
		t.Fatalf("LLMProvider = %q, want %q", cfg.LLMProvider, "mock")
	}
}

func TestLoadClampsStaffSessionTTL(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("WF_STAFF_SESSION_TTL_MS", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StaffSessionTTL.Milliseconds() != 10_000 {
		t.Fatalf("StaffSessionTTL = %v, want clamped to 10s", cfg.StaffSessionTTL)
	}
}

func TestLoadUsesExplicitAnthropicModel(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("ANTHROPIC_MODEL", "claude-3-5-sonnet-latest")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AnthropicModel != "claude-3-5-sonnet-latest" {
		t.Fatalf("AnthropicModel = %q, want explicit value", cfg.AnthropicModel)
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_METRICS_NAMESPACE",
		"WF_TICK_INTERVAL_MS",
		"WF_SSE_KEEPALIVE_INTERVAL_MS",
		"WF_CONSENT_TIMEOUT_MS",
		"WF_INACTIVITY_TIMEOUT_MS",
		"WF_STAFF_SESSION_TTL_MS",
		"WF_STAFF_ALLOWED_CIDRS",
		"STT_PROVIDER",
		"WHISPER_MODEL_PATH",
		"WHISPER_LANGUAGE",
		"WHISPER_THREADS",
		"LLM_PROVIDER",
		"ANTHROPIC_API_KEY",
		"ANTHROPIC_MODEL",
		"KIOSK_SYSTEM_PROMPT",
		"STORE_PATH",
		"WF_LEGACY_PERSONAL_WAKEUP",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
