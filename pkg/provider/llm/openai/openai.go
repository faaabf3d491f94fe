// Package openai provides an LLM provider for the OpenAI chat completions API
// and any endpoint that speaks the same protocol.
//
// JSON mode is sent as the native json_object response format when the
// model supports it and as a system prompt instruction otherwise.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/mockinterview/pkg/provider/llm"
)

var _ llm.Provider = (*Provider)(nil)

const providerName = "openai"

// Option configures a [Provider].
type Option func(*settings)

type settings struct {
	requestOpts []option.RequestOption
}

// WithBaseURL points the client at a different OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(s *settings) { s.requestOpts = append(s.requestOpts, option.WithBaseURL(url)) }
}

// WithOrganization sends the OpenAI-Organization header on every call.
func WithOrganization(org string) Option {
	return func(s *settings) { s.requestOpts = append(s.requestOpts, option.WithOrganization(org)) }
}

// WithTimeout bounds each HTTP round trip.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.requestOpts = append(s.requestOpts, option.WithHTTPClient(&http.Client{Timeout: d}))
	}
}

// WithMaxRetries sets how often the SDK retries a failed call itself. The
// failover chain sits above this, so zero is a reasonable choice.
func WithMaxRetries(n int) Option {
	return func(s *settings) { s.requestOpts = append(s.requestOpts, option.WithMaxRetries(n)) }
}

// Provider implements [llm.Provider] on top of openai-go.
type Provider struct {
	client oai.Client
	model  string
}

// New returns a provider for model authenticated with apiKey.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	switch {
	case apiKey == "":
		return nil, errors.New("openai: apiKey must not be empty")
	case model == "":
		return nil, errors.New("openai: model must not be empty")
	}
	s := settings{requestOpts: []option.RequestOption{option.WithAPIKey(apiKey)}}
	for _, o := range opts {
		o(&s)
	}
	return &Provider{client: oai.NewClient(s.requestOpts...), model: model}, nil
}

// Complete implements [llm.Provider].
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := chatParams(p.model, req)
	if err != nil {
		return nil, err
	}
	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("openai: %w", llm.ErrEmptyResponse)
	}
	u := completion.Usage
	return &llm.CompletionResponse{
		Content: completion.Choices[0].Message.Content,
		Usage: llm.Usage{
			PromptTokens:     int(u.PromptTokens),
			CompletionTokens: int(u.CompletionTokens),
			TotalTokens:      int(u.TotalTokens),
		},
	}, nil
}

// Capabilities implements [llm.Provider].
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return capabilitiesFor(p.model)
}

// classify attaches the HTTP status of an API error so callers can tell
// credential and quota problems apart.
func classify(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return &llm.APIError{Provider: providerName, StatusCode: apiErr.StatusCode, Err: err}
	}
	return fmt.Errorf("openai: chat completion: %w", err)
}

// modelFamily holds limits shared by model names with a common prefix.
type modelFamily struct {
	prefix string
	caps   llm.ModelCapabilities

	// fixedSampling models reject any temperature other than the default.
	fixedSampling bool
}

// families is checked in order, so longer prefixes come first.
var families = []modelFamily{
	{prefix: "gpt-4o", caps: llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 16_384, SupportsJSONMode: true}},
	{prefix: "gpt-4.1", caps: llm.ModelCapabilities{ContextWindow: 1_047_576, MaxOutputTokens: 32_768, SupportsJSONMode: true}},
	{prefix: "gpt-4-turbo", caps: llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096, SupportsJSONMode: true}},
	{prefix: "gpt-4", caps: llm.ModelCapabilities{ContextWindow: 8_192, MaxOutputTokens: 4_096}},
	{prefix: "gpt-3.5-turbo", caps: llm.ModelCapabilities{ContextWindow: 16_385, MaxOutputTokens: 4_096, SupportsJSONMode: true}},
	{prefix: "o1", caps: llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000, SupportsJSONMode: true}, fixedSampling: true},
	{prefix: "o3", caps: llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000, SupportsJSONMode: true}, fixedSampling: true},
	{prefix: "o4", caps: llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000, SupportsJSONMode: true}, fixedSampling: true},
}

// Unknown names are usually OpenAI-compatible servers hosting recent models.
var defaultFamily = modelFamily{caps: llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096, SupportsJSONMode: true}}

func familyFor(model string) modelFamily {
	lower := strings.ToLower(model)
	for _, f := range families {
		if strings.HasPrefix(lower, f.prefix) {
			return f
		}
	}
	return defaultFamily
}

func capabilitiesFor(model string) llm.ModelCapabilities {
	return familyFor(model).caps
}

// chatParams converts req for model. JSON mode uses the native json_object
// format where the model has one and falls back to the prompt instruction
// otherwise. Temperature is dropped for models with fixed sampling.
func chatParams(model string, req llm.CompletionRequest) (oai.ChatCompletionNewParams, error) {
	family := familyFor(model)
	nativeJSON := req.JSONMode && family.caps.SupportsJSONMode

	system := req.SystemPrompt
	if req.JSONMode && !nativeJSON {
		system = llm.SystemPromptFor(req)
	}

	msgs := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if system != "" {
		msgs = append(msgs, oai.SystemMessage(system))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			msgs = append(msgs, oai.SystemMessage(m.Content))
		case llm.RoleUser:
			msgs = append(msgs, oai.UserMessage(m.Content))
		case llm.RoleAssistant:
			msgs = append(msgs, oai.AssistantMessage(m.Content))
		default:
			return oai.ChatCompletionNewParams{}, fmt.Errorf("openai: unknown message role %q", m.Role)
		}
	}

	params := oai.ChatCompletionNewParams{Model: shared.ChatModel(model), Messages: msgs}
	if req.Temperature != 0 && !family.fixedSampling {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if nativeJSON {
		params.ResponseFormat.OfJSONObject = &shared.ResponseFormatJSONObjectParam{}
	}
	return params, nil
}
