// Package anyllm reaches the long tail of reasoning backends (Anthropic,
// DeepSeek, Mistral, Groq, Ollama, llama.cpp and others) through
// github.com/mozilla-ai/any-llm-go.
//
// any-llm-go has no portable structured-output switch, so JSON mode is
// requested through the system prompt (see [llm.SystemPromptFor]).
//
//	p, err := anyllm.New("anthropic", "claude-3-5-sonnet-latest", anyllmlib.WithAPIKey("sk-ant-..."))
package anyllm

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/mockinterview/pkg/provider/llm"
)

var _ llm.Provider = (*Provider)(nil)

type constructor func(...anyllmlib.Option) (anyllmlib.Provider, error)

func backend[P anyllmlib.Provider](ctor func(...anyllmlib.Option) (P, error)) constructor {
	return func(opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
		p, err := ctor(opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

var backends = map[string]constructor{
	"anthropic": backend(anthropic.New),
	"deepseek":  backend(deepseek.New),
	"gemini":    backend(gemini.New),
	"groq":      backend(groq.New),
	"llamacpp":  backend(llamacpp.New),
	"llamafile": backend(llamafile.New),
	"mistral":   backend(mistral.New),
	"ollama":    backend(ollama.New),
	"openai":    backend(anyllmoai.New),
}

// SupportedProviders returns the backend names accepted by [New], sorted.
func SupportedProviders() []string {
	return slices.Sorted(maps.Keys(backends))
}

// Provider implements [llm.Provider] over one any-llm-go backend.
type Provider struct {
	name    string
	backend anyllmlib.Provider
	model   string
}

// New returns a provider for model on the named backend. Without an API key
// option the backend reads its usual environment variable. Local backends
// such as ollama need no key at all.
func New(name, model string, opts ...anyllmlib.Option) (*Provider, error) {
	switch {
	case name == "":
		return nil, errors.New("anyllm: provider name must not be empty")
	case model == "":
		return nil, errors.New("anyllm: model must not be empty")
	}
	name = strings.ToLower(name)
	ctor, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("anyllm: unsupported provider %q; supported: %s",
			name, strings.Join(SupportedProviders(), ", "))
	}
	b, err := ctor(opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %s backend: %w", name, err)
	}
	return &Provider{name: name, backend: b, model: model}, nil
}

// Name returns the backend name the provider was created with.
func (p *Provider) Name() string { return p.name }

// Complete implements [llm.Provider].
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.backend.Completion(ctx, completionParams(p.model, req))
	if err != nil {
		return nil, fmt.Errorf("anyllm %s: completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm %s: %w", p.name, llm.ErrEmptyResponse)
	}
	out := &llm.CompletionResponse{Content: resp.Choices[0].Message.ContentString()}
	if out.Content == "" {
		return nil, fmt.Errorf("anyllm %s: %w", p.name, llm.ErrEmptyResponse)
	}
	if u := resp.Usage; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return out, nil
}

// Capabilities implements [llm.Provider]. None of the backends is assumed to
// have a native JSON switch.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return capabilitiesFor(p.model)
}

func completionParams(model string, req llm.CompletionRequest) anyllmlib.CompletionParams {
	msgs := make([]anyllmlib.Message, 0, len(req.Messages)+1)
	if sys := llm.SystemPromptFor(req); sys != "" {
		msgs = append(msgs, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: sys})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, anyllmlib.Message{Role: m.Role, Content: m.Content})
	}

	params := anyllmlib.CompletionParams{Model: model, Messages: msgs}
	if req.Temperature != 0 {
		params.Temperature = &req.Temperature
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = &req.MaxTokens
	}
	return params
}

func capabilitiesFor(model string) llm.ModelCapabilities {
	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "claude"):
		return llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 8_192}
	case strings.HasPrefix(lower, "gemini"):
		caps := llm.ModelCapabilities{ContextWindow: 1_048_576, MaxOutputTokens: 8_192}
		if strings.Contains(lower, "2.5") {
			caps.MaxOutputTokens = 65_536
		}
		return caps
	case strings.HasPrefix(lower, "deepseek"):
		return llm.ModelCapabilities{ContextWindow: 64_000, MaxOutputTokens: 8_192}
	case strings.HasPrefix(lower, "gpt-4o"):
		return llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 16_384}
	case strings.HasPrefix(lower, "gpt-4"):
		return llm.ModelCapabilities{ContextWindow: 8_192, MaxOutputTokens: 4_096}
	}
	return llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}
}
