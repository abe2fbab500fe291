// Package plugin is a registry of speech providers. Provider packages
// register factories from init so a binary picks them up with a blank
// import, and callers build instances by kind and name from configuration.
package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/chriscow/voicemart/pkg/ai/stt"
	"github.com/chriscow/voicemart/pkg/ai/tts"
)

// Provider kinds.
const (
	KindRecognizer = "recognizer"
	KindTTS        = "tts"
)

// Factory creates a provider from configuration. The result must implement
// the interface for its kind: stt.Recognizer or tts.TTS.
type Factory func(cfg map[string]any) (any, error)

// Plugin is a registered provider and its metadata.
type Plugin struct {
	Kind        string
	Name        string
	Factory     Factory
	Description string
	Version     string
	// Config documents the keys the factory understands.
	Config map[string]any
}

// Registry maps kind and name to plugins.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]map[string]*Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]map[string]*Plugin)}
}

var globalRegistry = NewRegistry()

// Register adds a factory to the global registry. It panics on duplicates.
func Register(kind, name string, factory Factory) {
	globalRegistry.Register(kind, name, factory)
}

// RegisterWithMetadata adds p to the global registry. It panics on duplicates.
func RegisterWithMetadata(p *Plugin) {
	globalRegistry.RegisterWithMetadata(p)
}

// Get looks up a factory in the global registry.
func Get(kind, name string) (Factory, bool) {
	return globalRegistry.Get(kind, name)
}

// List returns the global registry's plugins of kind, or all of them when
// kind is empty.
func List(kind string) []*Plugin {
	return globalRegistry.List(kind)
}

// ListKinds returns the kinds present in the global registry.
func ListKinds() []string {
	return globalRegistry.ListKinds()
}

// NewRecognizer builds a recognizer from the global registry.
func NewRecognizer(name string, cfg map[string]any) (stt.Recognizer, error) {
	return globalRegistry.NewRecognizer(name, cfg)
}

// NewTTS builds a synthesizer from the global registry.
func NewTTS(name string, cfg map[string]any) (tts.TTS, error) {
	return globalRegistry.NewTTS(name, cfg)
}

func (r *Registry) Register(kind, name string, factory Factory) {
	r.RegisterWithMetadata(&Plugin{Kind: kind, Name: name, Factory: factory})
}

func (r *Registry) RegisterWithMetadata(p *Plugin) {
	if p.Kind == "" {
		panic("plugin kind cannot be empty")
	}
	if p.Name == "" {
		panic("plugin name cannot be empty")
	}
	if p.Factory == nil {
		panic("plugin factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.plugins[p.Kind] == nil {
		r.plugins[p.Kind] = make(map[string]*Plugin)
	}
	if existing, ok := r.plugins[p.Kind][p.Name]; ok {
		panic(fmt.Sprintf("plugin %s/%s already registered (existing version: %s, new version: %s)",
			p.Kind, p.Name, existing.Version, p.Version))
	}
	r.plugins[p.Kind][p.Name] = p
}

func (r *Registry) Get(kind, name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[kind][name]
	if !ok {
		return nil, false
	}
	return p.Factory, true
}

// List returns plugins sorted by kind, then name.
func (r *Registry) List(kind string) []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Plugin
	for k, byName := range r.plugins {
		if kind != "" && k != kind {
			continue
		}
		for _, p := range byName {
			out = append(out, p)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (r *Registry) ListKinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.plugins))
	for kind := range r.plugins {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func (r *Registry) NewRecognizer(name string, cfg map[string]any) (stt.Recognizer, error) {
	v, err := r.build(KindRecognizer, name, cfg)
	if err != nil {
		return nil, err
	}
	rec, ok := v.(stt.Recognizer)
	if !ok {
		return nil, fmt.Errorf("plugin %s/%s built %T, not a recognizer", KindRecognizer, name, v)
	}
	return rec, nil
}

func (r *Registry) NewTTS(name string, cfg map[string]any) (tts.TTS, error) {
	v, err := r.build(KindTTS, name, cfg)
	if err != nil {
		return nil, err
	}
	synth, ok := v.(tts.TTS)
	if !ok {
		return nil, fmt.Errorf("plugin %s/%s built %T, not a synthesizer", KindTTS, name, v)
	}
	return synth, nil
}

func (r *Registry) build(kind, name string, cfg map[string]any) (any, error) {
	factory, ok := r.Get(kind, name)
	if !ok {
		return nil, fmt.Errorf("no %s plugin named %q", kind, name)
	}
	if cfg == nil {
		cfg = map[string]any{}
	}
	v, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s/%s: %w", kind, name, err)
	}
	return v, nil
}

// Clear removes every plugin. It exists for tests.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = make(map[string]map[string]*Plugin)
}
