// Package mock is a scriptable [llm.Provider] for tests.
//
//	p := &mock.Provider{Replies: []string{`{"overall": 4}`, `{"summary": "ok", "total_average": 4}`}}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/mockinterview/pkg/provider/llm"
)

var _ llm.Provider = (*Provider)(nil)

// CompleteCall is one recorded Complete invocation.
type CompleteCall struct {
	Ctx context.Context
	Req llm.CompletionRequest
}

// Provider answers Complete from, in order of precedence, CompleteFunc, the
// Replies queue, or CompleteResponse and CompleteErr. Configure it before
// the first call.
type Provider struct {
	mu sync.Mutex

	CompleteFunc     func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
	Replies          []string
	CompleteResponse *llm.CompletionResponse
	CompleteErr      error

	ModelCapabilities llm.ModelCapabilities

	CompleteCalls []CompleteCall
}

// Complete records the call and returns the scripted outcome.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})
	fn := p.CompleteFunc
	var reply *llm.CompletionResponse
	if fn == nil && len(p.Replies) > 0 {
		reply = &llm.CompletionResponse{Content: p.Replies[0]}
		p.Replies = p.Replies[1:]
	}
	resp, err := p.CompleteResponse, p.CompleteErr
	p.mu.Unlock()

	switch {
	case fn != nil:
		return fn(ctx, req)
	case reply != nil:
		return reply, nil
	}
	return resp, err
}

func (p *Provider) Capabilities() llm.ModelCapabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ModelCapabilities
}

// Calls returns a snapshot of the recorded calls.
func (p *Provider) Calls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]CompleteCall(nil), p.CompleteCalls...)
}

// Reset forgets the recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = nil
}
