// Package fake provides a sine-wave synthesizer for tests.
package fake

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/chriscow/voicemart/pkg/ai/tts"
	"github.com/chriscow/voicemart/pkg/rtc"
)

const (
	sampleRate = 16000
	frameSize  = 10 * time.Millisecond
	frequency  = 440.0
)

// FakeTTS synthesizes a quiet tone whose length follows the text length. It
// records every request it receives.
type FakeTTS struct {
	// FrameDelay paces frame delivery to imitate real-time synthesis.
	FrameDelay time.Duration
	// FramesPerRune controls utterance length.
	FramesPerRune int
	// Err, when set, is returned from Synthesize.
	Err error

	mu       sync.Mutex
	requests []tts.SynthesizeRequest
}

// NewFakeTTS creates a new fake TTS provider.
func NewFakeTTS() *FakeTTS {
	return &FakeTTS{FrameDelay: time.Millisecond, FramesPerRune: 1}
}

// Synthesize emits sine-wave frames for the given text.
func (f *FakeTTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (<-chan rtc.AudioFrame, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	err := f.Err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	perRune := f.FramesPerRune
	if perRune <= 0 {
		perRune = 1
	}
	frameCount := len([]rune(req.Text)) * perRune
	volume := float64(req.Volume)
	if volume <= 0 {
		volume = 1
	}

	output := make(chan rtc.AudioFrame, 10)
	go func() {
		defer close(output)

		samplesPerChannel := sampleRate * int(frameSize) / int(time.Second)
		for i := 0; i < frameCount; i++ {
			data := make([]byte, samplesPerChannel*2)
			for j := 0; j < samplesPerChannel; j++ {
				idx := i*samplesPerChannel + j
				sample := math.Sin(2*math.Pi*frequency*float64(idx)/sampleRate) * 0.3 * volume
				s := int16(sample * 32767)
				data[j*2] = byte(s)
				data[j*2+1] = byte(s >> 8)
			}

			frame := rtc.AudioFrame{
				Data:              data,
				SampleRate:        sampleRate,
				SamplesPerChannel: samplesPerChannel,
				NumChannels:       1,
				Timestamp:         time.Duration(i) * frameSize,
			}
			select {
			case output <- frame:
			case <-ctx.Done():
				return
			}

			if f.FrameDelay > 0 {
				select {
				case <-time.After(f.FrameDelay):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return output, nil
}

// Requests returns a copy of every request received so far.
func (f *FakeTTS) Requests() []tts.SynthesizeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tts.SynthesizeRequest(nil), f.requests...)
}

// Capabilities returns the fake TTS capabilities.
func (f *FakeTTS) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{
		Streaming:            true,
		SupportedLanguages:   []string{"en-US", "en-GB"},
		SupportedVoices:      []string{"fake-voice-1", "fake-voice-2"},
		SampleRates:          []int{sampleRate},
		SupportsSpeedControl: true,
		SupportsPitchControl: true,
	}
}
