// Package tts defines a speech-synthesis provider used only by the optional
// preview/playback endpoint (POST /v1/tts/speak). The orchestrator core and
// effect executor never call a TTS provider directly — they hand off text
// via the kiosk.command.speak envelope, and synthesis happens downstream of
// that, on whatever device or service the kiosk pairs with.
package tts

import "context"

type SynthesizeInput struct {
	VoiceID string
	Text    string
}

type SynthesizeOutput struct {
	Audio  []byte
	Format string // e.g. "audio/wav"
}

type Provider interface {
	Synthesize(ctx context.Context, input SynthesizeInput) (SynthesizeOutput, error)
}

// MockProvider returns empty silence; useful for smoke-testing the preview
// endpoint's wiring without a real voice backend configured.
type MockProvider struct{}

func (MockProvider) Synthesize(ctx context.Context, input SynthesizeInput) (SynthesizeOutput, error) {
	return SynthesizeOutput{Audio: []byte{}, Format: "audio/wav"}, nil
}
