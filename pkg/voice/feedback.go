package voice

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chriscow/voicemart/pkg/ai"
	"github.com/chriscow/voicemart/pkg/ai/tts"
	"github.com/chriscow/voicemart/pkg/rtc"
)

// Delivery parameters for every spoken line.
const (
	SpeechRate   float32 = 0.9
	SpeechPitch  float32 = 1.1
	SpeechVolume float32 = 0.8
)

// DefaultFeedbackRetry retries recoverable synthesis failures within a few
// hundred milliseconds.
var DefaultFeedbackRetry = ai.RetryConfig{
	MaxRetries:    2,
	InitialDelay:  50 * time.Millisecond,
	MaxDelay:      200 * time.Millisecond,
	BackoffFactor: 2,
}

// Speaker says short feedback lines. Speak never blocks on playback.
type Speaker interface {
	Speak(text string)
}

// Utterance describes a finished or interrupted feedback line.
type Utterance struct {
	Text        string
	Frames      int
	Interrupted bool
	Err         error
	Duration    time.Duration
}

// FeedbackConfig configures a Feedback.
type FeedbackConfig struct {
	TTS      tts.TTS  // nil disables speech
	Sink     rtc.Sink // nil discards audio
	Voice    string
	Language string
	// Gate is told when an utterance starts and stops playing.
	Gate SpeechGate
	// Retry governs recoverable synthesis errors. The zero value never
	// retries.
	Retry ai.RetryConfig
	// OnDone is called once per utterance, for logging only.
	OnDone func(Utterance)
	Logger *slog.Logger
}

// Feedback speaks one line at a time. A new Speak cancels whatever is still
// playing; frames are only written to the sink by the newest utterance.
type Feedback struct {
	tts    tts.TTS
	sink   rtc.Sink
	voice  string
	lang   string
	gate   SpeechGate
	retry  ai.RetryConfig
	onDone func(Utterance)
	logger *slog.Logger

	mu     sync.Mutex // held while a frame is written to the sink
	gen    uint64
	cancel context.CancelFunc
	dirty  bool // frames reached the sink since the last flush
	closed bool
	wg     sync.WaitGroup
}

// NewFeedback creates a synthesizer.
func NewFeedback(cfg FeedbackConfig) *Feedback {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Feedback{
		tts:    cfg.TTS,
		sink:   cfg.Sink,
		voice:  cfg.Voice,
		lang:   cfg.Language,
		gate:   cfg.Gate,
		retry:  cfg.Retry,
		onDone: cfg.OnDone,
		logger: logger,
	}
}

// Speak starts saying text and returns immediately.
func (f *Feedback) Speak(text string) {
	if text == "" {
		return
	}
	if f.tts == nil {
		f.logger.Debug("speech synthesis unavailable", slog.String("text", text))
		return
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.interruptLocked()
	f.gen++
	gen := f.gen
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.wg.Add(1)
	f.mu.Unlock()

	go f.play(ctx, cancel, gen, text)
}

// Cancel silences the current utterance, if any.
func (f *Feedback) Cancel() {
	f.mu.Lock()
	f.interruptLocked()
	f.mu.Unlock()
}

// Close cancels speech and waits for playback goroutines to finish. Later
// Speak calls are ignored.
func (f *Feedback) Close() {
	f.mu.Lock()
	f.closed = true
	f.interruptLocked()
	f.mu.Unlock()
	f.wg.Wait()
}

// Wait blocks until every started utterance has finished or been cancelled.
func (f *Feedback) Wait() {
	f.wg.Wait()
}

func (f *Feedback) interruptLocked() {
	f.gen++
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	if !f.dirty {
		return
	}
	f.dirty = false
	if fl, ok := f.sink.(rtc.Flusher); ok {
		if err := fl.Flush(); err != nil {
			f.logger.Debug("failed to flush feedback audio", slog.String("error", err.Error()))
		}
	}
}

func (f *Feedback) play(ctx context.Context, cancel context.CancelFunc, gen uint64, text string) {
	defer f.wg.Done()
	defer cancel()
	if f.gate != nil {
		f.gate.SetSpeaking(true)
		defer f.gate.SetSpeaking(false)
	}

	start := time.Now()
	u := Utterance{Text: text}
	defer func() {
		u.Duration = time.Since(start)
		f.finish(u)
	}()

	req := tts.SynthesizeRequest{
		Text:     text,
		Voice:    f.voice,
		Language: f.lang,
		Speed:    SpeechRate,
		Pitch:    SpeechPitch,
		Volume:   SpeechVolume,
	}
	frames, err := f.tts.Synthesize(ctx, req)
	for attempt := 1; err != nil && ai.IsRecoverable(err) && !f.retry.Exhausted(attempt); attempt++ {
		f.logger.Debug("retrying feedback speech",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		select {
		case <-time.After(f.retry.Delay(attempt)):
		case <-ctx.Done():
			u.Interrupted = true
			return
		}
		frames, err = f.tts.Synthesize(ctx, req)
	}
	if err != nil {
		u.Err = err
		return
	}

	for frame := range frames {
		f.mu.Lock()
		if f.gen != gen {
			f.mu.Unlock()
			u.Interrupted = true
			break
		}
		if f.sink != nil {
			if err := f.sink.Play(frame); err != nil {
				f.mu.Unlock()
				u.Err = err
				return
			}
			f.dirty = true
		}
		f.mu.Unlock()
		u.Frames++
	}

	if ctx.Err() != nil {
		u.Interrupted = true
	}
}

func (f *Feedback) finish(u Utterance) {
	attrs := []any{
		slog.String("text", u.Text),
		slog.Int("frames", u.Frames),
		slog.Bool("interrupted", u.Interrupted),
		slog.Duration("duration", u.Duration),
	}
	switch {
	case ai.IsFatal(u.Err):
		f.logger.Error("feedback speech unavailable", append(attrs, slog.String("error", u.Err.Error()))...)
	case u.Err != nil:
		f.logger.Warn("feedback speech failed", append(attrs, slog.String("error", u.Err.Error()))...)
	default:
		f.logger.Debug("finished speaking", attrs...)
	}
	if f.onDone != nil {
		f.onDone(u)
	}
}
