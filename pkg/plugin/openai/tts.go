// Package openai registers an OpenAI speech synthesizer as the "openai" tts
// plugin.
package openai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/voicemart/pkg/ai"
	"github.com/chriscow/voicemart/pkg/ai/tts"
	"github.com/chriscow/voicemart/pkg/rtc"
)

const (
	defaultModel = openai.TTSModel1
	defaultVoice = openai.VoiceAlloy

	// SampleRate of the raw PCM the speech endpoint returns.
	SampleRate = 24000
	// frameSamples is 20ms of audio.
	frameSamples = SampleRate / 50
)

// Config configures TTS.
type Config struct {
	APIKey  string
	Model   string
	Voice   string
	BaseURL string
	Logger  *slog.Logger
}

// TTS synthesizes speech with OpenAI's audio API and streams it as 16-bit
// mono PCM frames.
type TTS struct {
	client *openai.Client
	model  openai.SpeechModel
	voice  openai.SpeechVoice
	logger *slog.Logger
}

// NewTTS creates a synthesizer.
func NewTTS(cfg Config) (*TTS, error) {
	if cfg.APIKey == "" {
		return nil, ai.NewFatalError(nil, "openai: API key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	t := &TTS{
		client: openai.NewClientWithConfig(clientCfg),
		model:  defaultModel,
		voice:  defaultVoice,
		logger: cfg.Logger,
	}
	if cfg.Model != "" {
		t.model = openai.SpeechModel(cfg.Model)
	}
	if cfg.Voice != "" {
		t.voice = openai.SpeechVoice(cfg.Voice)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t, nil
}

// Synthesize requests speech for req.Text. The request is made before
// Synthesize returns so that API errors surface to the caller; frames are
// then streamed as the response body arrives. Pitch and volume are not
// supported by the API and are ignored.
func (t *TTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (<-chan rtc.AudioFrame, error) {
	voice := t.voice
	if req.Voice != "" {
		voice = openai.SpeechVoice(req.Voice)
	}

	speechReq := openai.CreateSpeechRequest{
		Model:          t.model,
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: openai.SpeechResponseFormatPcm,
	}
	if req.Speed > 0 {
		speechReq.Speed = float64(req.Speed)
	}

	t.logger.Debug("requesting speech",
		slog.String("model", string(t.model)),
		slog.String("voice", string(voice)),
		slog.Int("chars", len(req.Text)))

	resp, err := t.client.CreateSpeech(ctx, speechReq)
	if err != nil {
		return nil, classify(err)
	}

	frames := make(chan rtc.AudioFrame, 10)
	go func() {
		defer close(frames)
		defer resp.Close()

		start := time.Now()
		buf := make([]byte, frameSamples*2)
		var offset time.Duration
		for {
			n, err := io.ReadFull(resp, buf)
			n -= n % 2 // whole samples only
			if n > 0 {
				frame, ferr := rtc.NewAudioFrame(append([]byte(nil), buf[:n]...), SampleRate, 1, offset)
				if ferr != nil {
					t.logger.Error("bad audio frame", slog.String("error", ferr.Error()))
					return
				}
				offset += frame.Duration()

				select {
				case frames <- *frame:
				case <-ctx.Done():
					return
				}
			}

			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
					t.logger.Warn("speech stream interrupted", slog.String("error", err.Error()))
				}
				break
			}
		}
		t.logger.Debug("speech synthesized",
			slog.Duration("audio", offset),
			slog.Duration("elapsed", time.Since(start)))
	}()

	return frames, nil
}

// Capabilities reports the provider's voices and controls.
func (t *TTS) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{
		Streaming:            true,
		SupportedLanguages:   []string{"en", "es", "fr", "de", "it", "pt", "ru", "ja", "ko", "zh"},
		SupportedVoices:      []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"},
		SampleRates:          []int{SampleRate},
		SupportsSpeedControl: true,
		SupportsPitchControl: false,
	}
}

// classify marks rate limits, server errors and transport failures as
// recoverable.
func classify(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	msg := "create speech: " + err.Error()
	if status == 0 || status == 429 || status >= 500 {
		return ai.NewRecoverableError(err, msg)
	}
	return ai.NewFatalError(err, msg)
}
