// Package rtc holds the PCM audio unit that synthesizers emit and the
// playback sink consumes.
package rtc

import (
	"fmt"
	"time"
)

// AudioFrame is a chunk of 16-bit little-endian PCM.
// len(Data) == SamplesPerChannel * NumChannels * 2.
// Timestamp is the offset from the start of the utterance.
type AudioFrame struct {
	Data              []byte
	SampleRate        int
	SamplesPerChannel int
	NumChannels       int
	Timestamp         time.Duration
}

// NewAudioFrame builds a frame and checks that data holds whole samples for
// every channel.
func NewAudioFrame(data []byte, sampleRate, numChannels int, timestamp time.Duration) (*AudioFrame, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if numChannels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", numChannels)
	}
	stride := numChannels * 2
	if len(data)%stride != 0 {
		return nil, fmt.Errorf("audio frame data length %d is not a multiple of %d (%d channels, 16-bit)",
			len(data), stride, numChannels)
	}

	return &AudioFrame{
		Data:              data,
		SampleRate:        sampleRate,
		SamplesPerChannel: len(data) / stride,
		NumChannels:       numChannels,
		Timestamp:         timestamp,
	}, nil
}

// Duration is the playback length of the frame.
func (f *AudioFrame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(f.SamplesPerChannel) * time.Second / time.Duration(f.SampleRate)
}

// Sink receives frames for playback. Implementations must not retain Data
// after returning.
type Sink interface {
	Play(frame AudioFrame) error
}

// Flusher is implemented by sinks that buffer audio downstream. Flush drops
// whatever has been played but not yet heard.
type Flusher interface {
	Flush() error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(frame AudioFrame) error

func (f SinkFunc) Play(frame AudioFrame) error { return f(frame) }
