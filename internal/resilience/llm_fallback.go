package resilience

import (
	"context"

	"github.com/MrWong99/mockinterview/pkg/provider/llm"
)

var _ llm.Provider = (*LLMFallback)(nil)

// LLMFallback is an [llm.Provider] that fails over across reasoning backends.
type LLMFallback struct {
	*Group[llm.Provider]
}

// NewLLMFallback starts a failover chain with primary as the preferred backend.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	g := NewGroup[llm.Provider](cfg)
	g.Add(primaryName, primary)
	return &LLMFallback{Group: g}
}

// AddFallback appends a backend to the chain.
func (f *LLMFallback) AddFallback(name string, p llm.Provider) { f.Add(name, p) }

// Complete implements [llm.Provider].
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Call(ctx, f.Group, func(ctx context.Context, p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Capabilities reports the primary's capabilities. Prompts are built for
// the primary model even when a fallback answers.
func (f *LLMFallback) Capabilities() llm.ModelCapabilities {
	if p, ok := f.Primary(); ok {
		return p.Capabilities()
	}
	return llm.ModelCapabilities{}
}
