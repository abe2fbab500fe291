// Package stt defines the continuous speech-recognition capability the voice
// core listens to. A Recognizer runs one capture session at a time and reports
// interim and final transcripts, coarse error codes and end-of-stream on a
// single long-lived event channel.
package stt

import (
	"context"
)

// Config contains per-session recognition settings.
type Config struct {
	Lang           string // BCP 47 tag, e.g. "en-US"
	InterimResults bool
	Continuous     bool
}

// SpeechEventType represents the type of speech recognition event.
type SpeechEventType int

const (
	// SpeechEventInterim carries provisional text that later results replace.
	SpeechEventInterim SpeechEventType = iota
	// SpeechEventFinal carries committed text.
	SpeechEventFinal
	// SpeechEventError carries a coarse error code.
	SpeechEventError
	// SpeechEventEnd reports that the engine closed its capture session.
	SpeechEventEnd
)

func (t SpeechEventType) String() string {
	switch t {
	case SpeechEventInterim:
		return "interim"
	case SpeechEventFinal:
		return "final"
	case SpeechEventError:
		return "error"
	case SpeechEventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// ErrorCode is the engine's coarse error classification. The values follow
// the Web Speech API so browser engines can pass them through unchanged.
type ErrorCode string

const (
	ErrorNotAllowed          ErrorCode = "not-allowed"
	ErrorPermissionDenied    ErrorCode = "permission-denied"
	ErrorServiceNotAllowed   ErrorCode = "service-not-allowed"
	ErrorNetwork             ErrorCode = "network"
	ErrorNoSpeech            ErrorCode = "no-speech"
	ErrorAudioCapture        ErrorCode = "audio-capture"
	ErrorAborted             ErrorCode = "aborted"
	ErrorLanguageUnsupported ErrorCode = "language-not-supported"
	ErrorUnsupported         ErrorCode = "unsupported"
)

// SpeechEvent is one recognition callback.
type SpeechEvent struct {
	Type      SpeechEventType
	Text      string    // transcript for interim/final events
	Code      ErrorCode // set for error events
	Message   string    // engine-provided detail for error events
	Language  string
	Timestamp int64 // milliseconds since epoch
}

// Capabilities describes what a recognizer supports.
type Capabilities struct {
	Continuous         bool
	InterimResults     bool
	SupportedLanguages []string
}

// Recognizer is a continuous speech-recognition engine.
//
// Start opens a capture session and returns once the engine accepted the
// request; ctx bounds the request, not the session. Stop ends the session.
// Every session, however it ends, is followed by a SpeechEventEnd.
type Recognizer interface {
	Start(ctx context.Context, cfg Config) error
	Stop() error
	Events() <-chan SpeechEvent
	Capabilities() Capabilities
}

// PermissionRequester asks the platform for microphone access. A nil error
// means access was granted.
type PermissionRequester interface {
	RequestPermission(ctx context.Context) error
}
