package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/mockinterview/pkg/provider/llm"
	"github.com/MrWong99/mockinterview/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned when no factory is known for a
// configured provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory builds a provider from its configuration entry.
type Factory[P any] func(ProviderEntry) (P, error)

// factories is a name-indexed set of constructors for one provider kind.
type factories[P comparable] struct {
	kind   string
	byName map[string]Factory[P]
}

func newFactories[P comparable](kind string) factories[P] {
	return factories[P]{kind: kind, byName: make(map[string]Factory[P])}
}

func (f factories[P]) create(entry ProviderEntry) (P, error) {
	var zero P
	build, ok := f.byName[entry.Name]
	if !ok {
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, f.kind, entry.Name)
	}
	p, err := build(entry)
	if err != nil {
		return zero, fmt.Errorf("config: create %s/%s: %w", f.kind, entry.Name, err)
	}
	if p == zero {
		return zero, fmt.Errorf("config: %s/%s factory returned no provider", f.kind, entry.Name)
	}
	return p, nil
}

// Registry holds the provider constructors known to the binary. The
// configuration only names providers; main registers how to build them.
// Safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	llm factories[llm.Provider]
	tts factories[tts.Provider]
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm: newFactories[llm.Provider]("llm"),
		tts: newFactories[tts.Provider]("tts"),
	}
}

// RegisterLLM adds or replaces the reasoning-service factory for name.
func (r *Registry) RegisterLLM(name string, f Factory[llm.Provider]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm.byName[name] = f
}

// RegisterTTS adds or replaces the voice-service factory for name.
func (r *Registry) RegisterTTS(name string, f Factory[tts.Provider]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts.byName[name] = f
}

// CreateLLM builds the reasoning provider named by entry.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.llm.create(entry)
}

// CreateTTS builds the voice provider named by entry.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tts.create(entry)
}

// LLMNames lists the registered reasoning providers, sorted.
func (r *Registry) LLMNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.llm.byName))
}

// TTSNames lists the registered voice providers, sorted.
func (r *Registry) TTSNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.tts.byName))
}
