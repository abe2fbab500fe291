package voice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chriscow/voicemart/pkg/ai"
	sttfake "github.com/chriscow/voicemart/pkg/ai/stt/fake"
	ttsfake "github.com/chriscow/voicemart/pkg/ai/tts/fake"
	"github.com/chriscow/voicemart/pkg/cart"
	"github.com/chriscow/voicemart/pkg/catalog"
	"github.com/chriscow/voicemart/pkg/events"
)

type recordingSpeaker struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingSpeaker) Speak(text string) {
	r.mu.Lock()
	r.lines = append(r.lines, text)
	r.mu.Unlock()
}

func (r *recordingSpeaker) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *recordingPublisher) Publish(ev *events.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingPublisher) Events() []*events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*events.Event(nil), r.events...)
}

// Named returns the recorded events with the given name.
func (r *recordingPublisher) Named(name events.Name) []*events.Event {
	var out []*events.Event
	for _, ev := range r.Events() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// Effects returns every recorded event that is not display-only.
func (r *recordingPublisher) Effects() []*events.Event {
	var out []*events.Event
	for _, ev := range r.Events() {
		if ev.Name != events.Transcript {
			out = append(out, ev)
		}
	}
	return out
}

type harness struct {
	assistant *Assistant
	rec       *sttfake.FakeRecognizer
	tts       *ttsfake.FakeTTS
	cart      *cart.Memory
	catalog   *catalog.Memory
	events    *recordingPublisher
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	h := &harness{
		rec:     sttfake.NewFakeRecognizer(),
		tts:     ttsfake.NewFakeTTS(),
		cart:    cart.NewMemory(),
		catalog: catalog.NewMemory(catalog.SampleSnapshot()),
		events:  &recordingPublisher{},
	}
	if opts.TranscriptClearAfter == 0 {
		opts.TranscriptClearAfter = -1 // disabled unless a test asks for it
	}

	bus := events.NewBus(nil)
	bus.SubscribeAll(h.events.Publish)

	a, err := New(Config{
		Recognizer: h.rec,
		TTS:        h.tts,
		Catalog:    h.catalog,
		Cart:       h.cart,
		Bus:        bus,
		Options:    opts,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.assistant = a
	t.Cleanup(func() { a.Close() })
	return h
}

// run starts the event pump for the rest of the test.
func (h *harness) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.assistant.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.assistant.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

func (h *harness) say(text string) Outcome {
	out := h.assistant.HandleTranscript(context.Background(), text)
	h.assistant.Flush()
	return out
}

func (h *harness) spoken() []string {
	var out []string
	for _, r := range h.tts.Requests() {
		out = append(out, r.Text)
	}
	return out
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

var fastRetry = ai.RetryConfig{
	MaxRetries:    3,
	InitialDelay:  time.Millisecond,
	MaxDelay:      5 * time.Millisecond,
	BackoffFactor: 2,
}
