// Package config loads kiosk runtime settings the way the teacher's
// config.Load does — env-driven with safe defaults and explicit clamping —
// but layered through viper so a YAML file and a local .env can supply the
// same keys; environment variables always win.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	BindAddr         string
	MetricsNamespace string

	TickInterval         time.Duration
	SSEKeepaliveInterval time.Duration
	ConsentTimeout       time.Duration
	InactivityTimeout    time.Duration

	StaffSessionTTL   time.Duration
	StaffAllowedCIDRs string

	STTProvider      string
	WhisperModelPath string
	WhisperLanguage  string
	WhisperThreads   int

	LLMProvider     string
	AnthropicAPIKey string
	AnthropicModel  string
	SystemPrompt    string

	StorePath string

	LegacyPersonalWakeup bool
}

// defaults holds the fallback values applied whenever a key is absent from
// every layer (YAML file, .env, process environment) or is present but
// blank — an explicitly empty env var means "use the default", the same
// convention the teacher's envOrDefault helper followed.
var defaults = map[string]string{
	"APP_BIND_ADDR":                ":8080",
	"APP_METRICS_NAMESPACE":        "kiosk",
	"WF_TICK_INTERVAL_MS":          "1000",
	"WF_SSE_KEEPALIVE_INTERVAL_MS": "25000",
	"WF_CONSENT_TIMEOUT_MS":        "30000",
	"WF_INACTIVITY_TIMEOUT_MS":     "300000",
	"WF_STAFF_SESSION_TTL_MS":      "180000",
	"WF_STAFF_ALLOWED_CIDRS":       "",
	"STT_PROVIDER":                 "mock",
	"WHISPER_MODEL_PATH":           "",
	"WHISPER_LANGUAGE":             "en",
	"WHISPER_THREADS":              "0",
	"LLM_PROVIDER":                 "mock",
	"ANTHROPIC_API_KEY":            "",
	"ANTHROPIC_MODEL":              "claude-3-5-haiku-latest",
	"KIOSK_SYSTEM_PROMPT":          "You are a friendly kiosk companion.",
	"STORE_PATH":                   "./kiosk.db",
	"WF_LEGACY_PERSONAL_WAKEUP":    "false",
}

// Load reads a kiosk.yaml config file (if present) and the process
// environment, with the environment taking precedence. A .env file (if
// present) is loaded into the process environment first without overriding
// variables that are already set, so its values also take precedence over
// kiosk.yaml. Load then applies the same clamping rules the orchestrator and
// staff-auth packages expect.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("kiosk")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	_ = v.ReadInConfig() // absent config file is not an error

	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	cfg := Config{
		BindAddr:             str(v, "APP_BIND_ADDR"),
		MetricsNamespace:     str(v, "APP_METRICS_NAMESPACE"),
		TickInterval:         millis(v, "WF_TICK_INTERVAL_MS"),
		SSEKeepaliveInterval: millis(v, "WF_SSE_KEEPALIVE_INTERVAL_MS"),
		ConsentTimeout:       millis(v, "WF_CONSENT_TIMEOUT_MS"),
		InactivityTimeout:    millis(v, "WF_INACTIVITY_TIMEOUT_MS"),
		StaffSessionTTL:      clampMillis(intOf(v, "WF_STAFF_SESSION_TTL_MS"), 10_000, 86_400_000),
		StaffAllowedCIDRs:    str(v, "WF_STAFF_ALLOWED_CIDRS"),
		STTProvider:          str(v, "STT_PROVIDER"),
		WhisperModelPath:     str(v, "WHISPER_MODEL_PATH"),
		WhisperLanguage:      str(v, "WHISPER_LANGUAGE"),
		WhisperThreads:       int(intOf(v, "WHISPER_THREADS")),
		LLMProvider:          str(v, "LLM_PROVIDER"),
		AnthropicAPIKey:      str(v, "ANTHROPIC_API_KEY"),
		AnthropicModel:       str(v, "ANTHROPIC_MODEL"),
		SystemPrompt:         str(v, "KIOSK_SYSTEM_PROMPT"),
		StorePath:            str(v, "STORE_PATH"),
		LegacyPersonalWakeup: boolOf(v, "WF_LEGACY_PERSONAL_WAKEUP"),
	}

	if cfg.TickInterval <= 0 {
		return Config{}, fmt.Errorf("WF_TICK_INTERVAL_MS must be positive")
	}
	if cfg.ConsentTimeout <= 0 {
		return Config{}, fmt.Errorf("WF_CONSENT_TIMEOUT_MS must be positive")
	}
	if cfg.InactivityTimeout <= 0 {
		return Config{}, fmt.Errorf("WF_INACTIVITY_TIMEOUT_MS must be positive")
	}

	return cfg, nil
}

// str returns the configured value for key, falling back to its default
// whenever the resolved value is blank.
func str(v *viper.Viper, key string) string {
	val := strings.TrimSpace(v.GetString(key))
	if val == "" {
		return defaults[key]
	}
	return val
}

// intOf parses the configured value for key as an integer, falling back to
// the default (or zero) on blank or malformed input.
func intOf(v *viper.Viper, key string) int64 {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		raw = defaults[key]
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		n, _ = strconv.ParseInt(defaults[key], 10, 64)
	}
	return n
}

func boolOf(v *viper.Viper, key string) bool {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		raw = defaults[key]
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return b
}

func millis(v *viper.Viper, key string) time.Duration {
	return time.Duration(intOf(v, key)) * time.Millisecond
}

func clampMillis(ms, min, max int64) time.Duration {
	if ms < min {
		ms = min
	}
	if ms > max {
		ms = max
	}
	return time.Duration(ms) * time.Millisecond
}
