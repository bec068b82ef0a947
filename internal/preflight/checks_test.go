package preflight

import "testing"

func TestRunWithMockProvidersWarnsNotErrors(t *testing.T) {
	checks := Run(Config{STTProvider: "mock", LLMProvider: "mock", StorePath: "/tmp/kiosk.db"})
	for _, c := range checks {
		if c.Status == StatusError {
			t.Errorf("check %s returned error with mock providers: %+v", c.ID, c)
		}
	}
}

func TestRunMissingWhisperModelIsError(t *testing.T) {
	checks := Run(Config{STTProvider: "whisper", WhisperModelPath: "", StorePath: "/tmp/kiosk.db"})
	found := false
	for _, c := range checks {
		if c.ID == "whisper_model" {
			found = true
			if c.Status != StatusError {
				t.Errorf("whisper_model status = %v, want error", c.Status)
			}
		}
	}
	if !found {
		t.Fatal("expected a whisper_model check")
	}
}

func TestRunMissingAnthropicKeyIsError(t *testing.T) {
	checks := Run(Config{LLMProvider: "anthropic", AnthropicAPIKey: "", StorePath: "/tmp/kiosk.db"})
	for _, c := range checks {
		if c.ID == "anthropic_key" && c.Status != StatusError {
			t.Errorf("anthropic_key status = %v, want error", c.Status)
		}
	}
}

func TestRunEmptyStorePathIsError(t *testing.T) {
	checks := Run(Config{STTProvider: "mock", LLMProvider: "mock", StorePath: ""})
	for _, c := range checks {
		if c.ID == "store_path" && c.Status != StatusError {
			t.Errorf("store_path status = %v, want error", c.Status)
		}
	}
}
