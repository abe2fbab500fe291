package voice

import (
	"log/slog"
)

const (
	msgActivated     = `Voice commands activated! I am now listening to your commands. Try saying "scroll down" or "select headphones".`
	msgAlreadyActive = "Voice commands are already active."
	msgDeactivated   = `Voice commands deactivated. Say "listen now" when you need me again.`
)

// Verdict is what the activation gate decided about a command.
type Verdict int

const (
	// VerdictPass hands the command on to the dispatcher.
	VerdictPass Verdict = iota
	// VerdictConsumed means the gate handled the command itself.
	VerdictConsumed
	// VerdictDropped means the session is dormant and the command is ignored.
	VerdictDropped
)

// Activation is the dormant/active gate in front of the dispatcher.
type Activation struct {
	speaker    Speaker
	clearFocus bool
	logger     *slog.Logger
}

// NewActivation creates the gate. clearFocus makes deactivation also drop the
// focused product.
func NewActivation(speaker Speaker, clearFocus bool, logger *slog.Logger) *Activation {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activation{speaker: speaker, clearFocus: clearFocus, logger: logger}
}

// Evaluate applies cmd to the gate. Activation is honored in any state; every
// other category is dropped while dormant. The caller holds s.mu.
func (a *Activation) Evaluate(s *Session, cmd Command) (Verdict, Outcome) {
	out := Outcome{Command: cmd}

	if cmd.Category == CategoryActivation {
		if s.active {
			out.Kind = OutcomeAlreadyActive
			a.say(&out, msgAlreadyActive)
			return VerdictConsumed, out
		}
		s.active = true
		s.touch()
		a.logger.Info("voice commands activated", slog.String("phrase", cmd.Phrase))
		out.Kind = OutcomeActivated
		a.say(&out, msgActivated)
		return VerdictConsumed, out
	}

	if !s.active {
		a.logger.Debug("dormant, ignoring command",
			slog.String("category", cmd.Category.String()),
			slog.String("text", cmd.Text))
		out.Kind = OutcomeDropped
		return VerdictDropped, out
	}

	if cmd.Category == CategoryDeactivation {
		s.active = false
		s.touch()
		if a.clearFocus {
			s.setFocus("")
		}
		a.logger.Info("voice commands deactivated", slog.String("phrase", cmd.Phrase))
		out.Kind = OutcomeDeactivated
		a.say(&out, msgDeactivated)
		return VerdictConsumed, out
	}

	return VerdictPass, out
}

func (a *Activation) say(out *Outcome, text string) {
	out.Spoken = text
	if a.speaker != nil {
		a.speaker.Speak(text)
	}
}
