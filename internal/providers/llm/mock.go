package llm

import (
	"context"
	"strings"
)

// MockProvider is a deterministic stand-in used by tests and selected by
// LLM_PROVIDER=mock (the default) when no backend is configured.
type MockProvider struct {
	Streaming bool
	Reply     ChatOutput
	InnerJSON string
}

func (m *MockProvider) StreamingEnabled() bool { return m.Streaming }

func (m *MockProvider) Call(ctx context.Context, input ChatInput) (ChatOutput, error) {
	if m.Reply.Text != "" {
		return m.Reply, nil
	}
	var last string
	if len(input.Messages) > 0 {
		last = input.Messages[len(input.Messages)-1].Text
	}
	return ChatOutput{Text: "echo: " + strings.TrimSpace(last), Expression: "neutral"}, nil
}

func (m *MockProvider) Stream(ctx context.Context, input ChatInput, onDelta DeltaHandler) error {
	if !m.Streaming {
		return ErrStreamingUnsupported
	}
	out, err := m.Call(ctx, input)
	if err != nil {
		return err
	}
	for _, word := range strings.Fields(out.Text) {
		if err := onDelta(word + " "); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockProvider) InnerTask(ctx context.Context, input InnerTaskInput) (string, error) {
	if m.InnerJSON != "" {
		return m.InnerJSON, nil
	}
	return `{}`, nil
}
