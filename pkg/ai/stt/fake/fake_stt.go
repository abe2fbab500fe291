// Package fake provides a scriptable speech recognizer for tests and the
// simulate command.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/chriscow/voicemart/pkg/ai/stt"
)

// FakeRecognizer is a controllable stt.Recognizer that also answers
// microphone permission requests.
type FakeRecognizer struct {
	mu         sync.Mutex
	events     chan stt.SpeechEvent
	running    bool
	starts     int
	stops      int
	startErr   error
	permission error
	script     []string
	lastConfig stt.Config
}

// NewFakeRecognizer creates a recognizer that grants permission and emits
// nothing until told to.
func NewFakeRecognizer() *FakeRecognizer {
	return &FakeRecognizer{events: make(chan stt.SpeechEvent, 64)}
}

// NewScriptedRecognizer creates a recognizer that, after its first Start, emits
// an interim and a final transcript for each line in order.
func NewScriptedRecognizer(lines ...string) *FakeRecognizer {
	f := NewFakeRecognizer()
	f.script = lines
	return f
}

// Start opens a session. The first start replays the script, if any.
func (f *FakeRecognizer) Start(ctx context.Context, cfg stt.Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	if f.startErr != nil {
		err := f.startErr
		f.mu.Unlock()
		return err
	}
	f.starts++
	f.running = true
	f.lastConfig = cfg
	script := f.script
	f.script = nil
	f.mu.Unlock()

	if len(script) > 0 {
		go func() {
			for _, line := range script {
				f.Interim(line)
				f.Final(line)
			}
		}()
	}
	return nil
}

// Stop closes the current session and emits End.
func (f *FakeRecognizer) Stop() error {
	f.mu.Lock()
	wasRunning := f.running
	f.running = false
	f.stops++
	f.mu.Unlock()

	if wasRunning {
		f.End()
	}
	return nil
}

// Events returns the long-lived event channel.
func (f *FakeRecognizer) Events() <-chan stt.SpeechEvent {
	return f.events
}

// Capabilities reports continuous English recognition.
func (f *FakeRecognizer) Capabilities() stt.Capabilities {
	return stt.Capabilities{
		Continuous:         true,
		InterimResults:     true,
		SupportedLanguages: []string{"en-US", "en-GB"},
	}
}

// RequestPermission returns the error set with SetPermission.
func (f *FakeRecognizer) RequestPermission(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.permission
}

// SetPermission makes later permission requests fail with err (nil grants).
func (f *FakeRecognizer) SetPermission(err error) {
	f.mu.Lock()
	f.permission = err
	f.mu.Unlock()
}

// SetStartError makes later Start calls fail with err.
func (f *FakeRecognizer) SetStartError(err error) {
	f.mu.Lock()
	f.startErr = err
	f.mu.Unlock()
}

// Emit pushes an arbitrary event.
func (f *FakeRecognizer) Emit(ev stt.SpeechEvent) {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	f.events <- ev
}

// Interim emits a provisional transcript.
func (f *FakeRecognizer) Interim(text string) {
	f.Emit(stt.SpeechEvent{Type: stt.SpeechEventInterim, Text: text, Language: f.lang()})
}

// Final emits a committed transcript.
func (f *FakeRecognizer) Final(text string) {
	f.Emit(stt.SpeechEvent{Type: stt.SpeechEventFinal, Text: text, Language: f.lang()})
}

// Fail emits an error event. Like a real engine, an error that ends the
// session is followed by End.
func (f *FakeRecognizer) Fail(code stt.ErrorCode) {
	f.Emit(stt.SpeechEvent{Type: stt.SpeechEventError, Code: code})
	if code != stt.ErrorNoSpeech {
		f.mu.Lock()
		f.running = false
		f.mu.Unlock()
		f.End()
	}
}

// End emits end-of-stream without a Stop call, as engines do when they time
// out a session on their own.
func (f *FakeRecognizer) End() {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
	f.Emit(stt.SpeechEvent{Type: stt.SpeechEventEnd})
}

// Starts reports how many sessions were opened.
func (f *FakeRecognizer) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

// Stops reports how many times Stop was called.
func (f *FakeRecognizer) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// Running reports whether a session is open.
func (f *FakeRecognizer) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// LastConfig returns the config passed to the most recent Start.
func (f *FakeRecognizer) LastConfig() stt.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastConfig
}

func (f *FakeRecognizer) lang() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastConfig.Lang
}
