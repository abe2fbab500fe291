package voice

import (
	"sync"

	"github.com/google/uuid"

	"github.com/chriscow/voicemart/pkg/events"
)

// Status is the coarse session status shown by status indicators.
type Status int

const (
	StatusInactive Status = iota
	StatusWaiting         // waiting for microphone permission
	StatusListening
	StatusProcessing
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusInactive:
		return "inactive"
	case StatusWaiting:
		return "waiting"
	case StatusListening:
		return "listening"
	case StatusProcessing:
		return "processing"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Session is the single mutable state object of one voice session. Every
// component that changes it runs with mu held, so a final transcript is
// processed to completion before the next recognizer event is looked at.
type Session struct {
	mu sync.Mutex

	id         string
	listening  bool
	active     bool
	granted    bool
	transcript string
	status     Status
	lastError  *CaptureError
	focusID    string
	detailID   string

	history     []string
	historySize int

	dirty bool     // observable state changed since the last release
	after []func() // run after the lock is released
}

// NewSession creates a dormant, inactive session that keeps the last
// historySize processed transcripts.
func NewSession(historySize int) *Session {
	return &Session{
		id:          uuid.NewString(),
		historySize: historySize,
	}
}

// ID identifies the session in published events.
func (s *Session) ID() string {
	return s.id
}

// State is a copy of the observable session state.
type State struct {
	ID              string
	Listening       bool
	Active          bool
	Transcript      string
	Status          Status
	LastError       *CaptureError
	FocusProductID  string
	DetailProductID string
	History         []string
}

// State returns a snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) snapshot() State {
	return State{
		ID:              s.id,
		Listening:       s.listening,
		Active:          s.active,
		Transcript:      s.transcript,
		Status:          s.status,
		LastError:       s.lastError,
		FocusProductID:  s.focusID,
		DetailProductID: s.detailID,
		History:         append([]string(nil), s.history...),
	}
}

// Dormant reports whether commands other than activation are ignored.
func (st State) Dormant() bool {
	return !st.Active
}

// Event converts the snapshot to its published form.
func (st State) Event() events.SessionState {
	out := events.SessionState{
		Listening:       st.Listening,
		Active:          st.Active,
		Transcript:      st.Transcript,
		Status:          st.Status.String(),
		FocusProductID:  st.FocusProductID,
		DetailProductID: st.DetailProductID,
		History:         st.History,
	}
	if st.LastError != nil {
		out.LastError = st.LastError.Message()
	}
	return out
}

// touch marks observable state as changed. Transcript updates are published
// separately and do not count.
func (s *Session) touch() {
	s.dirty = true
}

func (s *Session) setStatus(st Status) {
	if s.status != st {
		s.status = st
		s.touch()
	}
}

func (s *Session) setFocus(id string) {
	if s.focusID != id {
		s.focusID = id
		s.touch()
	}
}

func (s *Session) record(text string) {
	if s.historySize <= 0 {
		return
	}
	s.history = append(s.history, text)
	if over := len(s.history) - s.historySize; over > 0 {
		s.history = append(s.history[:0], s.history[over:]...)
	}
	s.touch()
}

// stopListening enforces isActive ⟹ isListening.
func (s *Session) stopListening() {
	if s.listening || s.active {
		s.touch()
	}
	s.listening = false
	s.active = false
}

// deferUnlocked schedules fn to run after the lock is released.
func (s *Session) deferUnlocked(fn func()) {
	s.after = append(s.after, fn)
}

// release publishes a sessionChanged event if observable state changed,
// unlocks the session and then runs deferred work. pub must not block.
func (s *Session) release(pub events.Publisher) {
	if s.dirty && pub != nil {
		pub.Publish(events.New(events.SessionChanged).WithSession(s.id).WithState(s.snapshot().Event()))
	}
	s.dirty = false
	after := s.after
	s.after = nil
	s.mu.Unlock()

	for _, fn := range after {
		fn()
	}
}
