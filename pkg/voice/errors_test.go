package voice

import (
	"errors"
	"testing"

	"github.com/chriscow/voicemart/pkg/ai"
	"github.com/chriscow/voicemart/pkg/ai/stt"
	"github.com/matryer/is"
)

func TestKindFromCode(t *testing.T) {
	tests := []struct {
		code stt.ErrorCode
		want ErrorKind
	}{
		{stt.ErrorNotAllowed, KindPermissionDenied},
		{stt.ErrorPermissionDenied, KindPermissionDenied},
		{stt.ErrorServiceNotAllowed, KindPermissionDenied},
		{stt.ErrorNetwork, KindNetwork},
		{stt.ErrorNoSpeech, KindNoSpeech},
		{stt.ErrorAudioCapture, KindNoMicrophone},
		{stt.ErrorUnsupported, KindUnsupported},
		{stt.ErrorLanguageUnsupported, KindUnsupported},
		{stt.ErrorAborted, KindOther},
		{"bad-grammar", KindOther},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			is := is.New(t)
			is.Equal(KindFromCode(tt.code), tt.want)
		})
	}
}

func TestCaptureErrorUnwrap(t *testing.T) {
	is := is.New(t)

	cause := errors.New("user said no")
	err := error(NewCaptureError(KindPermissionDenied, "denied", cause))
	is.True(errors.Is(err, ErrPermissionDenied))
	is.True(errors.Is(err, ai.ErrFatal))
	is.True(!errors.Is(err, ai.ErrRecoverable))
	is.True(errors.Is(err, cause))
	is.Equal(err.Error(), "microphone permission denied: denied")

	network := NewCaptureError(KindNetwork, "", nil)
	is.True(errors.Is(network, ErrNetwork))
	is.True(ai.IsRecoverable(network))
	is.Equal(network.Error(), "speech recognition network error")

	var cerr *CaptureError
	is.True(errors.As(err, &cerr))
	is.Equal(cerr.Kind, KindPermissionDenied)
}

func TestCaptureErrorMessage(t *testing.T) {
	is := is.New(t)
	is.Equal(NewCaptureError(KindNoMicrophone, "", nil).Message(),
		"No microphone found. Please check your microphone connection.")
	is.Equal(NewCaptureError(KindOther, "aborted", nil).Message(),
		"Voice recognition error: aborted. Please try again.")
	is.Equal(ErrorMessage(NewCaptureError(KindNetwork, "", nil)),
		"Network error occurred. Please check your internet connection.")
	is.Equal(ErrorMessage(errors.New("plain")), "plain")
	is.Equal(ErrorMessage(nil), "")
}
