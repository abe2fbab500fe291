package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chriscow/voicemart/pkg/ai/stt"
	"github.com/chriscow/voicemart/pkg/ai/tts"
	"github.com/chriscow/voicemart/pkg/events"
	"github.com/chriscow/voicemart/pkg/rtc"
)

// ErrClosed is returned by bridge calls after the connection has gone.
var ErrClosed = errors.New("bridge closed")

const writeTimeout = 10 * time.Second

// Controller is what page signals drive; *voice.Assistant implements it.
type Controller interface {
	Start(ctx context.Context) error
	Stop()
	Toggle(ctx context.Context) error
	OpenDetail(productID string)
	CloseDetail()
}

// Bridge connects one browser page to one assistant. The page runs the Web
// Speech recognizer, so the bridge is the assistant's stt.Recognizer and
// stt.PermissionRequester; Synthesizer exposes the page's speech synthesis.
// The bridge is also an rtc.Sink for server-side synthesizers and forwards
// bus events to the page.
type Bridge struct {
	conn   *websocket.Conn
	logger *slog.Logger

	in     chan *Signal
	out    chan *Command
	speech chan stt.SpeechEvent

	mu       sync.Mutex
	ctrl     Controller
	waiters  []chan error
	speaking map[string]chan struct{}

	// speechMu orders speak and cancelSpeech commands. The page has a
	// single speech queue, so a cancel must never trail a newer speak.
	speechMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

// NewBridge wraps an upgraded connection.
func NewBridge(conn *websocket.Conn, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		conn:     conn,
		logger:   logger,
		in:       make(chan *Signal, 100),
		out:      make(chan *Command, 100),
		speech:   make(chan stt.SpeechEvent, 64),
		speaking: make(map[string]chan struct{}),
		closed:   make(chan struct{}),
	}
}

// SetController routes start, stop and detail-view signals to c.
func (b *Bridge) SetController(c Controller) {
	b.mu.Lock()
	b.ctrl = c
	b.mu.Unlock()
}

// Run pumps the connection until the page disconnects or ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := b.readSignals(runCtx); err != nil {
			errCh <- fmt.Errorf("read signals: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := b.writeCommands(runCtx); err != nil {
			errCh <- fmt.Errorf("write commands: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		b.processSignals(runCtx)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
	}
	cancel()
	b.Close()
	wg.Wait()

	if websocket.IsCloseError(errors.Unwrap(err), websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return err
}

// Close drops the connection and releases anything waiting on the page.
func (b *Bridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.closed)
		err = b.conn.Close()
	})
	return err
}

func (b *Bridge) readSignals(ctx context.Context) error {
	for {
		var sig Signal
		if err := b.conn.ReadJSON(&sig); err != nil {
			select {
			case <-b.closed:
				return nil
			default:
				return err
			}
		}
		select {
		case b.in <- &sig:
		case <-ctx.Done():
			return nil
		}
	}
}

func (b *Bridge) writeCommands(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-b.out:
			_ = b.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := b.conn.WriteJSON(cmd); err != nil {
				return err
			}
		}
	}
}

func (b *Bridge) processSignals(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-b.in:
			b.handleSignal(ctx, sig)
		}
	}
}

func (b *Bridge) handleSignal(ctx context.Context, sig *Signal) {
	b.logger.Debug("signal", slog.String("type", sig.Type))

	switch sig.Type {
	case SignalPing:
		b.send(&Command{Type: CommandPong, Data: sig.Data})

	case SignalTranscript:
		typ := stt.SpeechEventInterim
		if sig.flag("final") {
			typ = stt.SpeechEventFinal
		}
		b.emit(stt.SpeechEvent{Type: typ, Text: sig.str("text"), Language: sig.str("lang")})

	case SignalRecognitionError:
		b.emit(stt.SpeechEvent{
			Type:    stt.SpeechEventError,
			Code:    stt.ErrorCode(sig.str("code")),
			Message: sig.str("message"),
		})

	case SignalRecognitionEnd:
		b.emit(stt.SpeechEvent{Type: stt.SpeechEventEnd})

	case SignalPermission:
		var err error
		if !sig.flag("granted") {
			reason := sig.str("reason")
			if reason == "" {
				reason = "denied"
			}
			err = errors.New(reason)
		}
		b.answerPermission(err)

	case SignalSpeechEnd:
		b.mu.Lock()
		if done, ok := b.speaking[sig.str("id")]; ok {
			close(done)
			delete(b.speaking, sig.str("id"))
		}
		b.mu.Unlock()

	case SignalStart, SignalToggle:
		ctrl := b.controller()
		if ctrl == nil {
			return
		}
		// Start waits for the permission answer, which arrives through
		// this loop.
		go func() {
			var err error
			if sig.Type == SignalStart {
				err = ctrl.Start(ctx)
			} else {
				err = ctrl.Toggle(ctx)
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				b.logger.Warn("start listening failed", slog.String("error", err.Error()))
			}
		}()

	case SignalStop:
		if ctrl := b.controller(); ctrl != nil {
			ctrl.Stop()
		}

	case SignalOpenDetail:
		if ctrl := b.controller(); ctrl != nil {
			ctrl.OpenDetail(sig.str("productId"))
		}

	case SignalCloseDetail:
		if ctrl := b.controller(); ctrl != nil {
			ctrl.CloseDetail()
		}

	default:
		b.logger.Warn("unknown signal type", slog.String("type", sig.Type))
		b.send(&Command{Type: CommandError, Data: map[string]any{"message": "unknown signal " + sig.Type}})
	}
}

func (b *Bridge) controller() Controller {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctrl
}

// send queues cmd for the writer. It gives up once the bridge is closed.
func (b *Bridge) send(cmd *Command) bool {
	select {
	case b.out <- cmd:
		return true
	case <-b.closed:
		return false
	}
}

func (b *Bridge) emit(ev stt.SpeechEvent) {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	select {
	case b.speech <- ev:
	case <-b.closed:
	}
}

// Forward sends a bus event to the page.
func (b *Bridge) Forward(ev *events.Event) {
	b.send(&Command{Type: CommandEvent, Data: map[string]any{"event": ev}})
}

// Start asks the page to start its recognizer.
func (b *Bridge) Start(ctx context.Context, cfg stt.Config) error {
	if !b.send(&Command{Type: CommandStartRecognition, Data: map[string]any{
		"lang":           cfg.Lang,
		"interimResults": cfg.InterimResults,
		"continuous":     cfg.Continuous,
	}}) {
		return ErrClosed
	}
	return nil
}

// Stop asks the page to stop its recognizer.
func (b *Bridge) Stop() error {
	if !b.send(&Command{Type: CommandStopRecognition}) {
		return ErrClosed
	}
	return nil
}

// Events carries recognizer events reported by the page.
func (b *Bridge) Events() <-chan stt.SpeechEvent {
	return b.speech
}

// Capabilities leaves language support to the browser.
func (b *Bridge) Capabilities() stt.Capabilities {
	return stt.Capabilities{Continuous: true, InterimResults: true}
}

// RequestPermission asks the page for microphone access and waits for the
// answer.
func (b *Bridge) RequestPermission(ctx context.Context) error {
	ch := make(chan error, 1)
	b.mu.Lock()
	b.waiters = append(b.waiters, ch)
	b.mu.Unlock()

	if !b.send(&Command{Type: CommandRequestPermission}) {
		return ErrClosed
	}

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-b.closed:
		return ErrClosed
	}
}

func (b *Bridge) answerPermission(err error) {
	b.mu.Lock()
	waiters := b.waiters
	b.waiters = nil
	b.mu.Unlock()

	for _, ch := range waiters {
		ch <- err
	}
}

// Synthesizer returns the page's speech synthesis as a tts.TTS.
func (b *Bridge) Synthesizer() tts.TTS {
	return pageSpeech{b}
}

type pageSpeech struct {
	b *Bridge
}

// Synthesize has the page speak req, cutting off anything it is still
// saying. The returned channel carries no audio; it closes when the page
// reports the utterance finished or ctx is cancelled, in which case the page
// is told to stop speaking.
func (p pageSpeech) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (<-chan rtc.AudioFrame, error) {
	b := p.b
	b.speechMu.Lock()
	for _, old := range b.takeSpeaking() {
		b.send(&Command{Type: CommandCancelSpeech, Data: map[string]any{"id": old}})
	}

	id := uuid.NewString()
	done := make(chan struct{})
	b.mu.Lock()
	b.speaking[id] = done
	b.mu.Unlock()

	sent := b.send(&Command{Type: CommandSpeak, Data: map[string]any{
		"id":     id,
		"text":   req.Text,
		"rate":   req.Speed,
		"pitch":  req.Pitch,
		"volume": req.Volume,
		"lang":   req.Language,
		"voice":  req.Voice,
	}})
	b.speechMu.Unlock()
	if !sent {
		b.forget(id)
		return nil, ErrClosed
	}

	frames := make(chan rtc.AudioFrame)
	go func() {
		defer close(frames)
		select {
		case <-done:
		case <-ctx.Done():
			b.speechMu.Lock()
			// A newer utterance may already have cancelled this one.
			if b.forget(id) {
				b.send(&Command{Type: CommandCancelSpeech, Data: map[string]any{"id": id}})
			}
			b.speechMu.Unlock()
		case <-b.closed:
		}
	}()
	return frames, nil
}

// takeSpeaking ends every utterance the page is still saying and returns
// their ids.
func (b *Bridge) takeSpeaking() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ids []string
	for id, done := range b.speaking {
		close(done)
		delete(b.speaking, id)
		ids = append(ids, id)
	}
	return ids
}

// forget drops id and reports whether it was still speaking.
func (b *Bridge) forget(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.speaking[id]
	delete(b.speaking, id)
	return ok
}

func (p pageSpeech) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{
		Streaming:            false,
		SupportsSpeedControl: true,
		SupportsPitchControl: true,
	}
}

// Play streams a PCM frame from a server-side synthesizer to the page.
func (b *Bridge) Play(frame rtc.AudioFrame) error {
	if !b.send(&Command{Type: CommandAudio, Data: map[string]any{
		"sampleRate": frame.SampleRate,
		"channels":   frame.NumChannels,
		"pcm":        append([]byte(nil), frame.Data...),
	}}) {
		return ErrClosed
	}
	return nil
}

// Flush drops audio the page has buffered but not yet played.
func (b *Bridge) Flush() error {
	if !b.send(&Command{Type: CommandFlushAudio}) {
		return ErrClosed
	}
	return nil
}
