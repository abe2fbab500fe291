package voice

import (
	"testing"

	"github.com/matryer/is"
)

func listeningSession() *Session {
	s := NewSession(10)
	s.listening = true
	s.status = StatusListening
	return s
}

func TestActivationTransitions(t *testing.T) {
	is := is.New(t)
	sp := &recordingSpeaker{}
	gate := NewActivation(sp, false, nil)
	s := listeningSession()

	v, out := gate.Evaluate(s, Classify("listen now"))
	is.Equal(v, VerdictConsumed)
	is.Equal(out.Kind, OutcomeActivated)
	is.True(s.active)

	v, out = gate.Evaluate(s, Classify("wake up"))
	is.Equal(v, VerdictConsumed)
	is.Equal(out.Kind, OutcomeAlreadyActive)
	is.True(s.active)

	v, _ = gate.Evaluate(s, Classify("scroll down"))
	is.Equal(v, VerdictPass)

	v, out = gate.Evaluate(s, Classify("stop listening"))
	is.Equal(v, VerdictConsumed)
	is.Equal(out.Kind, OutcomeDeactivated)
	is.True(!s.active)

	is.Equal(sp.Lines(), []string{msgActivated, msgAlreadyActive, msgDeactivated})
}

func TestActivationDropsWhileDormant(t *testing.T) {
	transcripts := []string{
		"stop listening",
		"help",
		"scroll down",
		"select smart watch",
		"add to cart",
		"buy now",
		"close",
		"view cart",
		"the weather is nice",
	}

	for _, text := range transcripts {
		t.Run(text, func(t *testing.T) {
			is := is.New(t)
			sp := &recordingSpeaker{}
			s := listeningSession()
			s.focusID = "2"
			before := s.State()

			v, out := NewActivation(sp, false, nil).Evaluate(s, Classify(text))
			is.Equal(v, VerdictDropped)
			is.Equal(out.Kind, OutcomeDropped)
			is.Equal(len(sp.Lines()), 0)
			is.Equal(s.State(), before)
			is.True(!s.dirty)
		})
	}
}

func TestDeactivationFocusOption(t *testing.T) {
	tests := []struct {
		name       string
		clearFocus bool
		wantFocus  string
	}{
		{"preserve focus", false, "4"},
		{"clear focus", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			s := listeningSession()
			s.active = true
			s.focusID = "4"

			NewActivation(nil, tt.clearFocus, nil).Evaluate(s, Classify("goodbye"))
			is.Equal(s.focusID, tt.wantFocus)
		})
	}
}
