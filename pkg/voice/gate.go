package voice

import "sync/atomic"

// SpeechGate tells the capture path whether the assistant is currently
// talking. With muting enabled, final transcripts that arrive while feedback
// is playing are discarded so the assistant does not act on its own voice.
type SpeechGate interface {
	// SetSpeaking records whether feedback is playing.
	SetSpeaking(speaking bool)

	// ShouldDiscard reports whether a final transcript should be dropped.
	ShouldDiscard() bool
}

// NewSpeechGate creates a gate. When mute is false it never discards.
func NewSpeechGate(mute bool) SpeechGate {
	return &speechGate{mute: mute}
}

type speechGate struct {
	mute     bool
	speaking atomic.Int32 // overlapping utterances are counted
}

func (g *speechGate) SetSpeaking(speaking bool) {
	if speaking {
		g.speaking.Add(1)
		return
	}
	if g.speaking.Add(-1) < 0 {
		g.speaking.Store(0)
	}
}

func (g *speechGate) ShouldDiscard() bool {
	return g.mute && g.speaking.Load() > 0
}
