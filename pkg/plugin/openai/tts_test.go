package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matryer/is"

	"github.com/chriscow/voicemart/pkg/ai"
	"github.com/chriscow/voicemart/pkg/ai/tts"
)

func speechServer(t *testing.T, status int, pcm []byte) (*httptest.Server, *map[string]any) {
	t.Helper()
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
			return
		}
		w.Header().Set("Content-Type", "audio/pcm")
		_, _ = w.Write(pcm)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestNewTTSRequiresKey(t *testing.T) {
	is := is.New(t)
	_, err := NewTTS(Config{})
	is.True(ai.IsFatal(err))
}

func TestSynthesizeStreamsPCMFrames(t *testing.T) {
	is := is.New(t)
	// 100ms of audio plus an odd trailing byte.
	pcm := make([]byte, 2*SampleRate/10+1)
	srv, got := speechServer(t, http.StatusOK, pcm)

	synth, err := NewTTS(Config{APIKey: "test", BaseURL: srv.URL + "/v1", Voice: "nova"})
	is.NoErr(err)

	frames, err := synth.Synthesize(context.Background(), tts.SynthesizeRequest{Text: "Scrolling down", Speed: 1.5})
	is.NoErr(err)

	var n, samples int
	for f := range frames {
		is.Equal(f.SampleRate, SampleRate)
		is.Equal(f.NumChannels, 1)
		n++
		samples += f.SamplesPerChannel
	}
	is.Equal(n, 5)
	is.Equal(samples, SampleRate/10)

	is.Equal((*got)["input"], "Scrolling down")
	is.Equal((*got)["voice"], "nova")
	is.Equal((*got)["model"], "tts-1")
	is.Equal((*got)["response_format"], "pcm")
	is.Equal((*got)["speed"], 1.5)
}

func TestSynthesizeRequestVoiceWins(t *testing.T) {
	is := is.New(t)
	srv, got := speechServer(t, http.StatusOK, make([]byte, 960))
	synth, err := NewTTS(Config{APIKey: "test", BaseURL: srv.URL + "/v1"})
	is.NoErr(err)

	frames, err := synth.Synthesize(context.Background(), tts.SynthesizeRequest{Text: "hi", Voice: "echo"})
	is.NoErr(err)
	for range frames {
	}
	is.Equal((*got)["voice"], "echo")
}

func TestSynthesizeClassifiesErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ai.ErrFatal},
		{http.StatusTooManyRequests, ai.ErrRecoverable},
		{http.StatusBadGateway, ai.ErrRecoverable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			is := is.New(t)
			srv, _ := speechServer(t, tt.status, nil)
			synth, err := NewTTS(Config{APIKey: "test", BaseURL: srv.URL + "/v1"})
			is.NoErr(err)

			_, err = synth.Synthesize(context.Background(), tts.SynthesizeRequest{Text: "hi"})
			is.True(errors.Is(err, tt.want))
			is.Equal(ai.IsRecoverable(err), tt.want == ai.ErrRecoverable)

			var classified *ai.RetryableError
			is.True(errors.As(err, &classified))
			is.True(classified.Underlying != nil) // the provider error stays reachable
		})
	}
}

func TestFactory(t *testing.T) {
	is := is.New(t)
	t.Setenv("OPENAI_API_KEY", "")

	_, err := newOpenAITTS(map[string]any{})
	is.True(err != nil)

	v, err := newOpenAITTS(map[string]any{"api_key": "k", "voice": "onyx", "model": "tts-1-hd"})
	is.NoErr(err)
	synth := v.(*TTS)
	is.Equal(string(synth.voice), "onyx")
	is.Equal(string(synth.model), "tts-1-hd")
}
