package stt

import (
	"context"
	"fmt"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go"

	"github.com/antoniostano/kiosk/internal/audio"
)

// WhisperCPPProvider runs transcription in-process against a local GGML
// model, fitting the LAN-only, offline-friendly deployment target — no
// audio ever leaves the kiosk's network.
type WhisperCPPProvider struct {
	model    whisper.Model
	language string
	threads  int
}

func NewWhisperCPPProvider(modelPath, language string, threads int) (*WhisperCPPProvider, error) {
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model %q: %w", modelPath, err)
	}
	if threads <= 0 {
		threads = 4
	}
	return &WhisperCPPProvider{model: model, language: language, threads: threads}, nil
}

func (p *WhisperCPPProvider) Transcribe(ctx context.Context, input TranscribeInput) (TranscribeOutput, error) {
	samples, err := audio.DecodeWAVToFloat32Mono16k(input.WAV)
	if err != nil {
		return TranscribeOutput{}, fmt.Errorf("decode kiosk audio: %w", err)
	}

	wctx, err := p.model.NewContext()
	if err != nil {
		return TranscribeOutput{}, fmt.Errorf("whisper context: %w", err)
	}
	if p.language != "" {
		_ = wctx.SetLanguage(p.language)
	}
	wctx.SetThreads(p.threads)

	if err := wctx.Process(samples, nil, nil); err != nil {
		return TranscribeOutput{}, fmt.Errorf("whisper process: %w", err)
	}

	var text string
	for {
		segment, err := wctx.NextSegment()
		if err != nil {
			break
		}
		text += segment.Text
	}
	return TranscribeOutput{Text: text}, nil
}

func (p *WhisperCPPProvider) Close() error {
	return p.model.Close()
}
