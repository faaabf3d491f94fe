// Package mock is an in-memory [tts.Provider] for tests. It returns canned
// audio and records what it was asked to read.
package mock

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/mockinterview/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

// SynthesizeCall is one recorded Synthesize invocation.
type SynthesizeCall struct {
	Ctx   context.Context
	Text  string
	Voice tts.VoiceProfile
}

// Provider answers Synthesize from, in order of precedence, SynthesizeFunc,
// the per-text Audio map, then SynthesizeResult and SynthesizeErr. The zero
// value returns empty audio. Fields must not change while calls are in
// flight.
type Provider struct {
	SynthesizeFunc   func(ctx context.Context, text string, voice tts.VoiceProfile) ([]byte, error)
	Audio            map[string][]byte
	SynthesizeResult []byte
	SynthesizeErr    error

	ListVoicesResult []tts.VoiceProfile
	ListVoicesErr    error

	mu         sync.Mutex
	calls      []SynthesizeCall
	listVoices int
}

// Synthesize implements [tts.Provider]. Returned audio is a copy.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) ([]byte, error) {
	p.mu.Lock()
	p.calls = append(p.calls, SynthesizeCall{Ctx: ctx, Text: text, Voice: voice})
	p.mu.Unlock()

	if p.SynthesizeFunc != nil {
		return p.SynthesizeFunc(ctx, text, voice)
	}
	if audio, ok := p.Audio[text]; ok {
		return bytes.Clone(audio), nil
	}
	if p.SynthesizeErr != nil {
		return nil, p.SynthesizeErr
	}
	return bytes.Clone(p.SynthesizeResult), nil
}

// ListVoices implements [tts.Provider].
func (p *Provider) ListVoices(context.Context) ([]tts.VoiceProfile, error) {
	p.mu.Lock()
	p.listVoices++
	p.mu.Unlock()
	if p.ListVoicesErr != nil {
		return nil, p.ListVoicesErr
	}
	return slices.Clone(p.ListVoicesResult), nil
}

// Calls returns the Synthesize calls so far, oldest first.
func (p *Provider) Calls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

// ListVoicesCount reports how often ListVoices was called.
func (p *Provider) ListVoicesCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listVoices
}

// Reset forgets recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls, p.listVoices = nil, 0
}
