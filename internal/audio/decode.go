package audio

import (
	"bytes"
	"fmt"

	"github.com/go-audio/wav"
)

// DecodeWAVToFloat32Mono16k reads a WAV container uploaded by a kiosk PTT
// capture and returns normalized float32 samples at whatever sample rate the
// file declares; callers that need exactly 16kHz mono (the whisper.cpp
// provider) are expected to have configured the kiosk capture device that
// way, since resampling is out of scope here.
func DecodeWAVToFloat32Mono16k(raw []byte) ([]float32, error) {
	decoder := wav.NewDecoder(bytes.NewReader(raw))
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("decode kiosk wav: not a valid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode kiosk wav: %w", err)
	}

	samples := make([]float32, len(buf.Data))
	max := float32(int(1) << (uint(buf.SourceBitDepth) - 1))
	for i, v := range buf.Data {
		samples[i] = float32(v) / max
	}
	return samples, nil
}
