package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/chriscow/voicemart/pkg/ai"
	"github.com/chriscow/voicemart/pkg/ai/stt"
	"github.com/chriscow/voicemart/pkg/events"
)

// DefaultImmediateEnd is how soon after starting a recognizer session must end
// to count towards the restart limit.
const DefaultImmediateEnd = time.Second

// Canceler stops in-flight speech.
type Canceler interface {
	Cancel()
}

// CaptureConfig configures a Capture.
type CaptureConfig struct {
	// Recognizer is the speech engine. Nil means the platform has none and
	// Start fails with KindUnsupported.
	Recognizer stt.Recognizer
	// Permissions gates the first Start. Nil means no permission is needed.
	Permissions stt.PermissionRequester
	Recognition stt.Config
	// Retry bounds automatic restarts after end-of-stream.
	Retry        ai.RetryConfig
	ImmediateEnd time.Duration
	Speech       Canceler
	Publisher    events.Publisher
	Metrics      *Metrics
	Logger       *slog.Logger
}

// Capture drives the recognizer for one session: permission, start/stop and
// restart after the engine ends a session on its own.
type Capture struct {
	s         *Session
	rec       stt.Recognizer
	perm      stt.PermissionRequester
	cfg       stt.Config
	retry     ai.RetryConfig
	immediate time.Duration
	speech    Canceler
	pub       events.Publisher
	metrics   *Metrics
	logger    *slog.Logger

	// guarded by s.mu
	epoch         uint64 // bumped by every start, stop and failure
	startedAt     time.Time
	immediateEnds int
	timer         *time.Timer
	runCtx        context.Context
}

// NewCapture creates the capture adapter for s.
func NewCapture(s *Session, cfg CaptureConfig) *Capture {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics()
	}
	if cfg.ImmediateEnd <= 0 {
		cfg.ImmediateEnd = DefaultImmediateEnd
	}
	if cfg.Retry.InitialDelay <= 0 {
		cfg.Retry = ai.DefaultRetryConfig
	}
	return &Capture{
		s:         s,
		rec:       cfg.Recognizer,
		perm:      cfg.Permissions,
		cfg:       cfg.Recognition,
		retry:     cfg.Retry,
		immediate: cfg.ImmediateEnd,
		speech:    cfg.Speech,
		pub:       cfg.Publisher,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		runCtx:    context.Background(),
	}
}

// Events is the recognizer's event stream, or nil without a recognizer.
func (c *Capture) Events() <-chan stt.SpeechEvent {
	if c.rec == nil {
		return nil
	}
	return c.rec.Events()
}

// Start asks for microphone permission if it has not been granted yet, then
// starts continuous recognition. It blocks while the permission request is
// pending. A denial leaves the session in StatusError and is returned as a
// *CaptureError; call Start again once the user has granted access.
func (c *Capture) Start(ctx context.Context) error {
	s := c.s
	s.mu.Lock()
	if s.listening || s.status == StatusWaiting {
		s.release(c.pub)
		return nil
	}
	c.epoch++
	epoch := c.epoch
	if s.lastError != nil {
		s.lastError = nil
		s.touch()
	}
	s.setStatus(StatusWaiting)
	needPermission := c.perm != nil && !s.granted
	s.release(c.pub)

	var permErr error
	if needPermission {
		c.logger.Debug("requesting microphone permission")
		permErr = c.perm.RequestPermission(ctx)
	}

	s.mu.Lock()
	defer s.release(c.pub)

	if c.epoch != epoch {
		c.logger.Debug("start superseded while waiting for permission")
		return nil
	}
	if permErr != nil {
		if errors.Is(permErr, context.Canceled) || errors.Is(permErr, context.DeadlineExceeded) {
			s.setStatus(StatusInactive)
			return permErr
		}
		s.granted = false
		return c.failLocked(NewCaptureError(KindPermissionDenied, permErr.Error(), permErr))
	}
	s.granted = true

	if c.rec == nil {
		return c.failLocked(NewCaptureError(KindUnsupported, "no speech recognizer", nil))
	}
	caps := c.rec.Capabilities()
	if c.cfg.Lang != "" && len(caps.SupportedLanguages) > 0 && !slices.Contains(caps.SupportedLanguages, c.cfg.Lang) {
		return c.failLocked(NewCaptureError(KindUnsupported, fmt.Sprintf("language %s not supported", c.cfg.Lang), nil))
	}
	if err := c.rec.Start(ctx, c.cfg); err != nil {
		return c.failLocked(startError(err))
	}

	s.listening = true
	s.touch()
	s.setStatus(StatusListening)
	c.startedAt = time.Now()
	c.immediateEnds = 0
	c.logger.Info("listening", slog.String("lang", c.cfg.Lang))
	return nil
}

// Stop ends capture. When it returns the session is inactive and dormant,
// the displayed transcript is cleared, speech is cancelled and no restart
// is pending.
func (c *Capture) Stop() {
	s := c.s
	s.mu.Lock()
	c.stopLocked()
	s.release(c.pub)
}

func (c *Capture) stopLocked() {
	s := c.s
	c.epoch++
	c.stopTimer()
	c.immediateEnds = 0

	wasListening := s.listening
	s.stopListening()
	s.setStatus(StatusInactive)
	c.setTranscript("", false)
	if c.speech != nil {
		c.speech.Cancel()
	}

	if wasListening && c.rec != nil {
		c.logger.Info("stopped listening")
		s.deferUnlocked(c.stopRecognizer)
	}
}

// interim shows provisional text. The caller holds s.mu.
func (c *Capture) interim(text string) {
	if !c.s.listening {
		return
	}
	c.setTranscript(strings.TrimSpace(text), false)
}

// final shows committed text and reports whether it should be interpreted.
// The caller holds s.mu.
func (c *Capture) final(text string) bool {
	if !c.s.listening {
		c.logger.Debug("ignoring transcript while not listening", slog.String("text", text))
		return false
	}
	c.setTranscript(strings.TrimSpace(text), true)
	return true
}

// errored handles a recognizer error event. The caller holds s.mu.
func (c *Capture) errored(ev stt.SpeechEvent) {
	kind := KindFromCode(ev.Code)
	if kind == KindNoSpeech {
		c.metrics.recordCaptureError(kind)
		c.logger.Debug("no speech detected")
		return
	}
	if !c.s.listening {
		c.logger.Debug("ignoring recognizer error while not listening", slog.String("code", string(ev.Code)))
		return
	}

	if kind == KindPermissionDenied {
		c.s.granted = false
	}
	reason := string(ev.Code)
	if ev.Message != "" {
		reason += ": " + ev.Message
	}
	c.failLocked(NewCaptureError(kind, reason, nil))
}

// ended handles end-of-stream. The caller holds s.mu.
func (c *Capture) ended() {
	s := c.s
	if !s.listening || !s.granted {
		c.logger.Debug("recognizer ended")
		if s.status == StatusListening || s.status == StatusProcessing {
			s.setStatus(StatusInactive)
		}
		return
	}

	n := 0
	if time.Since(c.startedAt) < c.immediate {
		c.immediateEnds++
		n = c.immediateEnds
	} else {
		c.immediateEnds = 0
	}

	if n > 0 && c.retry.Exhausted(n) {
		c.failLocked(NewCaptureError(KindRestartExhausted,
			fmt.Sprintf("%d consecutive sessions ended within %s", n, c.immediate), nil))
		return
	}

	delay := c.retry.Delay(max(n, 1))
	epoch := c.epoch
	c.stopTimer()
	c.timer = time.AfterFunc(delay, func() { c.restart(epoch) })
	c.logger.Debug("recognizer ended, restarting",
		slog.Int("immediate_ends", n),
		slog.Duration("delay", delay))
}

func (c *Capture) restart(epoch uint64) {
	s := c.s
	s.mu.Lock()
	defer s.release(c.pub)

	if c.epoch != epoch || !s.listening {
		return
	}
	c.timer = nil
	if c.runCtx.Err() != nil {
		return
	}

	if err := c.rec.Start(c.runCtx, c.cfg); err != nil {
		c.failLocked(startError(err))
		return
	}
	c.startedAt = time.Now()
	c.metrics.Restarts.Add(1)
}

// failLocked stops listening and surfaces cerr through the session state.
func (c *Capture) failLocked(cerr *CaptureError) error {
	s := c.s
	c.epoch++
	c.stopTimer()

	wasListening := s.listening
	s.stopListening()
	s.lastError = cerr
	s.touch()
	s.setStatus(StatusError)
	c.metrics.recordCaptureError(cerr.Kind)
	c.logger.Error("speech capture failed",
		slog.String("kind", cerr.Kind.String()),
		slog.String("error", cerr.Error()))

	if wasListening && c.rec != nil {
		s.deferUnlocked(c.stopRecognizer)
	}
	return cerr
}

func (c *Capture) setTranscript(text string, final bool) {
	s := c.s
	if s.transcript == text && !final {
		return
	}
	s.transcript = text
	if c.pub != nil {
		c.pub.Publish(events.New(events.Transcript).WithSession(s.id).WithText(text, final))
	}
}

func (c *Capture) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Capture) stopRecognizer() {
	if err := c.rec.Stop(); err != nil {
		c.logger.Warn("failed to stop recognizer", slog.String("error", err.Error()))
	}
}

func startError(err error) *CaptureError {
	var cerr *CaptureError
	if errors.As(err, &cerr) {
		return cerr
	}
	return NewCaptureError(KindOther, "failed to start: "+err.Error(), err)
}
