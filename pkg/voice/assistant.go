// Package voice is the voice-command core of the storefront. It turns a
// continuous speech-recognition stream into storefront actions: an activation
// gate decides whether commands are honored, a classifier maps transcripts to
// commands, a resolver fuzzy-matches product names, and a dispatcher publishes
// the resulting effects on an event bus while a synthesizer speaks feedback.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"

	"github.com/chriscow/voicemart/pkg/ai"
	"github.com/chriscow/voicemart/pkg/ai/stt"
	"github.com/chriscow/voicemart/pkg/ai/tts"
	"github.com/chriscow/voicemart/pkg/cart"
	"github.com/chriscow/voicemart/pkg/catalog"
	"github.com/chriscow/voicemart/pkg/events"
	"github.com/chriscow/voicemart/pkg/rtc"
)

// Options are the tunable parts of the assistant. Zero values take defaults.
type Options struct {
	Lang                   string
	MinConfidence          int
	ScrollStep             int
	ClearFocusOnDeactivate bool
	// MuteWhileSpeaking discards recognized commands while feedback plays.
	MuteWhileSpeaking      bool
	HistorySize            int
	TranscriptClearAfter   time.Duration // negative disables clearing
	Retry                  ai.RetryConfig
	ImmediateEnd           time.Duration
	Voice                  string
}

// DefaultOptions returns the stock settings.
func DefaultOptions() Options {
	return Options{
		Lang:                 "en-US",
		MinConfidence:        DefaultMinConfidence,
		ScrollStep:           DefaultScrollStep,
		HistorySize:          50,
		TranscriptClearAfter: 2 * time.Second,
		Retry:                ai.DefaultRetryConfig,
		ImmediateEnd:         DefaultImmediateEnd,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Lang == "" {
		o.Lang = d.Lang
	}
	if o.MinConfidence == 0 {
		o.MinConfidence = d.MinConfidence
	}
	if o.ScrollStep == 0 {
		o.ScrollStep = d.ScrollStep
	}
	if o.HistorySize == 0 {
		o.HistorySize = d.HistorySize
	}
	if o.TranscriptClearAfter == 0 {
		o.TranscriptClearAfter = d.TranscriptClearAfter
	}
	if o.Retry.InitialDelay == 0 {
		o.Retry = d.Retry
	}
	if o.ImmediateEnd == 0 {
		o.ImmediateEnd = d.ImmediateEnd
	}
	return o
}

// Config wires an Assistant to its collaborators.
type Config struct {
	// Recognizer may be nil on platforms without speech recognition; Start
	// then reports KindUnsupported.
	Recognizer stt.Recognizer
	// Permissions defaults to Recognizer when it implements
	// stt.PermissionRequester.
	Permissions stt.PermissionRequester
	// TTS may be nil; feedback is then only logged.
	TTS  tts.TTS
	Sink rtc.Sink

	Catalog catalog.Source
	Cart    cart.Adder
	Bus     events.Publisher

	// Phrases overrides the default phrase table.
	Phrases *PhraseTable
	Options Options
	Metrics *Metrics
	// OnSpoken is called after each feedback utterance, for diagnostics.
	OnSpoken func(Utterance)
	Logger   *slog.Logger
}

// Assistant is one voice session: capture, classification, gating, dispatch
// and feedback wired together around a single Session.
type Assistant struct {
	session    *Session
	capture    *Capture
	classifier *Classifier
	activation *Activation
	dispatcher *Dispatcher
	feedback   *Feedback
	gate       SpeechGate
	queue      *events.Queue
	metrics    *Metrics
	logger     *slog.Logger

	clearAfter time.Duration
	debounced  func(func())

	closeOnce sync.Once
	closed    chan struct{}
}

// New validates cfg and builds an assistant. The session starts inactive
// and dormant.
func New(cfg Config) (*Assistant, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog source is required")
	}
	if cfg.Cart == nil {
		return nil, fmt.Errorf("cart is required")
	}
	if cfg.Bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}

	opts := cfg.Options.withDefaults()
	if opts.MinConfidence < 0 || opts.MinConfidence > 100 {
		return nil, fmt.Errorf("min confidence %d out of range 0-100", opts.MinConfidence)
	}
	if opts.ScrollStep < 0 || opts.HistorySize < 0 {
		return nil, fmt.Errorf("scroll step and history size must not be negative")
	}

	table := DefaultPhrases()
	if cfg.Phrases != nil {
		table = *cfg.Phrases
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid phrase table: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	perm := cfg.Permissions
	if perm == nil {
		if p, ok := cfg.Recognizer.(stt.PermissionRequester); ok {
			perm = p
		}
	}

	session := NewSession(opts.HistorySize)
	logger = logger.With(slog.String("session", session.ID()))
	queue := events.NewQueue(cfg.Bus)
	gate := NewSpeechGate(opts.MuteWhileSpeaking)

	feedback := NewFeedback(FeedbackConfig{
		TTS:      cfg.TTS,
		Sink:     cfg.Sink,
		Voice:    opts.Voice,
		Language: opts.Lang,
		Gate:     gate,
		Retry:    DefaultFeedbackRetry,
		OnDone:   cfg.OnSpoken,
		Logger:   logger,
	})

	a := &Assistant{
		session:    session,
		classifier: NewClassifier(table),
		activation: NewActivation(feedback, opts.ClearFocusOnDeactivate, logger),
		dispatcher: NewDispatcher(DispatcherConfig{
			Resolver:   NewResolver(cfg.Catalog, opts.MinConfidence),
			Cart:       cfg.Cart,
			Publisher:  queue,
			Speaker:    feedback,
			ScrollStep: opts.ScrollStep,
			Logger:     logger,
		}),
		capture: NewCapture(session, CaptureConfig{
			Recognizer:   cfg.Recognizer,
			Permissions:  perm,
			Recognition:  stt.Config{Lang: opts.Lang, InterimResults: true, Continuous: true},
			Retry:        opts.Retry,
			ImmediateEnd: opts.ImmediateEnd,
			Speech:       feedback,
			Publisher:    queue,
			Metrics:      metrics,
			Logger:       logger,
		}),
		feedback:   feedback,
		gate:       gate,
		queue:      queue,
		metrics:    metrics,
		logger:     logger,
		clearAfter: opts.TranscriptClearAfter,
		closed:     make(chan struct{}),
	}
	if a.clearAfter > 0 {
		a.debounced = debounce.New(a.clearAfter)
	}
	return a, nil
}

// Run consumes recognizer events until ctx is done, the assistant is closed
// or the recognizer closes its event channel. Restarts after end-of-stream
// use ctx.
func (a *Assistant) Run(ctx context.Context) error {
	a.session.mu.Lock()
	a.capture.runCtx = ctx
	a.session.mu.Unlock()

	speech := a.capture.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.closed:
			return nil
		case ev, ok := <-speech:
			if !ok {
				return nil
			}
			a.handleSpeech(ctx, ev)
		}
	}
}

func (a *Assistant) handleSpeech(ctx context.Context, ev stt.SpeechEvent) {
	s := a.session
	s.mu.Lock()
	defer s.release(a.queue)

	switch ev.Type {
	case stt.SpeechEventInterim:
		a.capture.interim(ev.Text)
	case stt.SpeechEventFinal:
		if a.gate.ShouldDiscard() {
			a.logger.Debug("discarding transcript heard while speaking", slog.String("text", ev.Text))
			return
		}
		if a.capture.final(ev.Text) {
			a.interpret(ctx, ev.Text)
		}
	case stt.SpeechEventError:
		a.capture.errored(ev)
	case stt.SpeechEventEnd:
		a.capture.ended()
	}
}

// HandleTranscript interprets text as a final transcript, exactly as if the
// recognizer had produced it. Transcripts arriving while not listening are
// dropped.
func (a *Assistant) HandleTranscript(ctx context.Context, text string) Outcome {
	s := a.session
	s.mu.Lock()
	defer s.release(a.queue)

	if !a.capture.final(text) {
		return Outcome{Kind: OutcomeDropped, Command: a.classifier.Classify(text)}
	}
	return a.interpret(ctx, text)
}

// interpret classifies, gates and dispatches one final transcript. The
// caller holds the session lock for the whole call.
func (a *Assistant) interpret(ctx context.Context, text string) Outcome {
	s := a.session
	cmd := a.classifier.Classify(text)
	if cmd.Text == "" {
		return Outcome{Kind: OutcomeNone, Command: cmd}
	}

	verdict, out := a.activation.Evaluate(s, cmd)
	if verdict == VerdictDropped {
		a.metrics.recordOutcome(out)
		a.scheduleClear(s.transcript)
		return out
	}

	s.status = StatusProcessing
	s.record(cmd.Text)
	if verdict == VerdictPass {
		out = a.dispatcher.Dispatch(ctx, s, cmd)
	}
	s.status = StatusListening

	a.metrics.recordOutcome(out)
	level := slog.LevelInfo
	if out.Err != nil && !IsSoftMiss(out) {
		level = slog.LevelWarn
	}
	a.logger.Log(ctx, level, "command processed",
		slog.String("text", cmd.Text),
		slog.String("category", cmd.Category.String()),
		slog.String("outcome", out.Kind.String()))

	a.scheduleClear(s.transcript)
	return out
}

// scheduleClear clears the displayed transcript after a quiet period unless
// it has changed in the meantime.
func (a *Assistant) scheduleClear(text string) {
	if a.debounced == nil || text == "" {
		return
	}
	a.debounced(func() {
		s := a.session
		s.mu.Lock()
		if s.transcript == text {
			a.capture.setTranscript("", false)
		}
		s.release(a.queue)
	})
}

// Start begins listening. See Capture.Start.
func (a *Assistant) Start(ctx context.Context) error {
	return a.capture.Start(ctx)
}

// Stop stops listening and returns the session to inactive and dormant.
func (a *Assistant) Stop() {
	a.capture.Stop()
}

// Toggle stops when listening and starts otherwise.
func (a *Assistant) Toggle(ctx context.Context) error {
	if a.State().Listening {
		a.Stop()
		return nil
	}
	return a.Start(ctx)
}

// OpenDetail records that the storefront opened the detail view of a
// product. The focus reference is cleared.
func (a *Assistant) OpenDetail(productID string) {
	s := a.session
	s.mu.Lock()
	if s.detailID != productID {
		s.detailID = productID
		s.touch()
	}
	s.setFocus("")
	s.release(a.queue)
}

// CloseDetail records that the storefront closed the detail view.
func (a *Assistant) CloseDetail() {
	s := a.session
	s.mu.Lock()
	if s.detailID != "" {
		s.detailID = ""
		s.touch()
	}
	s.release(a.queue)
}

// State returns a snapshot of the session.
func (a *Assistant) State() State {
	return a.session.State()
}

// SessionID identifies this assistant's session in published events.
func (a *Assistant) SessionID() string {
	return a.session.ID()
}

// Metrics returns the assistant's counters.
func (a *Assistant) Metrics() *Metrics {
	return a.metrics
}

// Flush waits until every event published so far has been delivered.
func (a *Assistant) Flush() {
	a.queue.Flush()
}

// Close stops listening, silences feedback and delivers pending events.
func (a *Assistant) Close() error {
	a.closeOnce.Do(func() {
		a.Stop()
		close(a.closed)
		a.feedback.Close()
		a.queue.Close()
	})
	return nil
}

// ErrorMessage is the user-facing text of err if it is a capture error.
func ErrorMessage(err error) string {
	var cerr *CaptureError
	if errors.As(err, &cerr) {
		return cerr.Message()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
