package voice

import (
	"errors"
	"fmt"

	"github.com/chriscow/voicemart/pkg/ai"
	"github.com/chriscow/voicemart/pkg/ai/stt"
)

// ErrorKind classifies capture failures.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindPermissionDenied
	KindNetwork
	KindNoSpeech
	KindNoMicrophone
	KindUnsupported
	KindRestartExhausted
)

func (k ErrorKind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission_denied"
	case KindNetwork:
		return "network"
	case KindNoSpeech:
		return "no_speech"
	case KindNoMicrophone:
		return "no_microphone"
	case KindUnsupported:
		return "unsupported"
	case KindRestartExhausted:
		return "restart_exhausted"
	default:
		return "other"
	}
}

var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrNetwork          = errors.New("speech recognition network error")
	ErrNoSpeech         = errors.New("no speech detected")
	ErrNoMicrophone     = errors.New("no microphone")
	ErrUnsupported      = errors.New("speech recognition unsupported")
	ErrRestartExhausted = errors.New("speech recognition keeps ending")
	ErrCapture          = errors.New("speech recognition error")
)

// CaptureError is a capture-device failure. It unwraps to the sentinel for its
// kind and to ai.ErrRecoverable or ai.ErrFatal.
type CaptureError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

// NewCaptureError builds a CaptureError of the given kind.
func NewCaptureError(kind ErrorKind, reason string, cause error) *CaptureError {
	return &CaptureError{Kind: kind, Reason: reason, Err: cause}
}

func (e *CaptureError) Error() string {
	msg := e.sentinel().Error()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *CaptureError) Unwrap() []error {
	class := ai.ErrFatal
	if e.Recoverable() {
		class = ai.ErrRecoverable
	}
	errs := []error{e.sentinel(), class}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Recoverable reports whether starting again may succeed without user action.
func (e *CaptureError) Recoverable() bool {
	switch e.Kind {
	case KindNetwork, KindNoSpeech, KindRestartExhausted:
		return true
	default:
		return false
	}
}

// Message is the text shown to the user.
func (e *CaptureError) Message() string {
	switch e.Kind {
	case KindPermissionDenied:
		return "Microphone permission denied. Please allow microphone access in your browser settings."
	case KindNetwork:
		return "Network error occurred. Please check your internet connection."
	case KindNoSpeech:
		return "No speech detected."
	case KindNoMicrophone:
		return "No microphone found. Please check your microphone connection."
	case KindUnsupported:
		return "Speech recognition is not supported in your browser. Please use Chrome, Edge, or Safari."
	case KindRestartExhausted:
		return "Voice recognition keeps stopping. Please start listening again."
	default:
		reason := e.Reason
		if reason == "" {
			reason = "unknown"
		}
		return fmt.Sprintf("Voice recognition error: %s. Please try again.", reason)
	}
}

func (e *CaptureError) sentinel() error {
	switch e.Kind {
	case KindPermissionDenied:
		return ErrPermissionDenied
	case KindNetwork:
		return ErrNetwork
	case KindNoSpeech:
		return ErrNoSpeech
	case KindNoMicrophone:
		return ErrNoMicrophone
	case KindUnsupported:
		return ErrUnsupported
	case KindRestartExhausted:
		return ErrRestartExhausted
	default:
		return ErrCapture
	}
}

// KindFromCode maps a recognizer error code onto the capture taxonomy.
func KindFromCode(code stt.ErrorCode) ErrorKind {
	switch code {
	case stt.ErrorNotAllowed, stt.ErrorPermissionDenied, stt.ErrorServiceNotAllowed:
		return KindPermissionDenied
	case stt.ErrorNetwork:
		return KindNetwork
	case stt.ErrorNoSpeech:
		return KindNoSpeech
	case stt.ErrorAudioCapture:
		return KindNoMicrophone
	case stt.ErrorUnsupported, stt.ErrorLanguageUnsupported:
		return KindUnsupported
	default:
		return KindOther
	}
}
