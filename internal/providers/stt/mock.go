package stt

import "context"

// MockProvider returns a fixed transcript, used by tests and selected by
// STT_PROVIDER=mock (the default).
type MockProvider struct {
	Text string
	Err  error
}

func (m *MockProvider) Transcribe(ctx context.Context, input TranscribeInput) (TranscribeOutput, error) {
	if m.Err != nil {
		return TranscribeOutput{}, m.Err
	}
	text := m.Text
	if text == "" {
		text = "こんにちは"
	}
	return TranscribeOutput{Text: text}, nil
}
