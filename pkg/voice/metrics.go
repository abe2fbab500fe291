package voice

import (
	"expvar"
)

// Metrics counts what the voice core did. A Metrics may be shared by several
// assistants; publish it once with expvar.Publish(name, m.Var()).
type Metrics struct {
	Commands       *expvar.Map // processed commands by category
	Outcomes       *expvar.Map // by outcome kind
	Dropped        *expvar.Int // commands ignored while dormant
	ResolverMisses *expvar.Int
	Restarts       *expvar.Int // recognizer restarts after end-of-stream
	CaptureErrors  *expvar.Map // by error kind

	root *expvar.Map
}

// NewMetrics creates an unpublished set of counters.
func NewMetrics() *Metrics {
	m := &Metrics{
		Commands:       new(expvar.Map).Init(),
		Outcomes:       new(expvar.Map).Init(),
		Dropped:        new(expvar.Int),
		ResolverMisses: new(expvar.Int),
		Restarts:       new(expvar.Int),
		CaptureErrors:  new(expvar.Map).Init(),
		root:           new(expvar.Map).Init(),
	}
	m.root.Set("commands", m.Commands)
	m.root.Set("outcomes", m.Outcomes)
	m.root.Set("dropped", m.Dropped)
	m.root.Set("resolver_misses", m.ResolverMisses)
	m.root.Set("restarts", m.Restarts)
	m.root.Set("capture_errors", m.CaptureErrors)
	return m
}

// Var returns all counters as one expvar map.
func (m *Metrics) Var() expvar.Var {
	return m.root
}

func (m *Metrics) recordOutcome(out Outcome) {
	m.Outcomes.Add(out.Kind.String(), 1)
	switch out.Kind {
	case OutcomeDropped:
		m.Dropped.Add(1)
		return
	case OutcomeLowConfidence:
		m.ResolverMisses.Add(1)
	}
	m.Commands.Add(out.Command.Category.String(), 1)
}

func (m *Metrics) recordCaptureError(kind ErrorKind) {
	m.CaptureErrors.Add(kind.String(), 1)
}
