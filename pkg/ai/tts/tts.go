// Package tts defines the speech-synthesis capability used for spoken
// feedback.
package tts

import (
	"context"

	"github.com/chriscow/voicemart/pkg/rtc"
)

// SynthesizeRequest contains parameters for text-to-speech synthesis.
// Speed, Pitch and Volume are multipliers where 1.0 is the provider default.
type SynthesizeRequest struct {
	Text     string
	Voice    string
	Language string
	Speed    float32
	Pitch    float32
	Volume   float32
}

// TTSCapabilities describes the capabilities of a TTS provider.
type TTSCapabilities struct {
	Streaming            bool
	SupportedLanguages   []string
	SupportedVoices      []string
	SampleRates          []int
	SupportsSpeedControl bool
	SupportsPitchControl bool
}

// TTS is the main interface for text-to-speech providers.
type TTS interface {
	// Synthesize converts text to audio frames.
	// The returned channel closes when synthesis completes or ctx is cancelled.
	Synthesize(ctx context.Context, req SynthesizeRequest) (<-chan rtc.AudioFrame, error)

	// Capabilities returns the provider's capabilities.
	Capabilities() TTSCapabilities
}
