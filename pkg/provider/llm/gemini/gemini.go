// Package gemini provides an LLM provider backed by the Google Gen AI SDK
// (google.golang.org/genai) talking to the Gemini Developer API.
//
// JSON mode maps to the native response MIME type switch, so a
// [llm.CompletionRequest] with JSONMode set is answered with raw JSON.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/MrWong99/mockinterview/pkg/provider/llm"
)

// Compile-time interface assertion.
var _ llm.Provider = (*Provider)(nil)

const (
	defaultModel = "gemini-2.5-flash"

	jsonMIMEType = "application/json"

	roleUser  = "user"
	roleModel = "model"
)

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the Gemini model used for completions.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the Gemini API base URL. Primarily used to target a
// proxy or a local test server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// ── Provider ───────────────────────────────────────────────────────────────────

// Provider implements llm.Provider for the Gemini Developer API.
type Provider struct {
	client  *genai.Client
	model   string
	baseURL string
}

// New creates a Provider. apiKey must be non-empty; the client is created
// eagerly so configuration errors surface at startup.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: apiKey must not be empty")
	}
	p := &Provider{model: defaultModel}
	for _, o := range opts {
		o(p)
	}

	cc := &genai.ClientConfig{APIKey: apiKey}
	if p.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	p.client = client
	return p, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	contents, system, err := buildContents(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	cfg := buildConfig(req, system)

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, &llm.APIError{Provider: "gemini", StatusCode: apiErr.Code, Err: err}
		}
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		return nil, fmt.Errorf("gemini: %w", llm.ErrEmptyResponse)
	}
	return &llm.CompletionResponse{
		Content: text,
		Usage:   convertUsage(resp.UsageMetadata),
	}, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	caps := llm.ModelCapabilities{
		ContextWindow:    1_048_576,
		MaxOutputTokens:  8_192,
		SupportsJSONMode: true,
	}
	if strings.Contains(strings.ToLower(p.model), "2.5") {
		caps.MaxOutputTokens = 65_536
	}
	return caps
}

// buildContents converts the request messages into Gemini contents. System
// messages are folded into the returned system instruction together with
// req.SystemPrompt, since Gemini only accepts "user" and "model" turns.
func buildContents(req llm.CompletionRequest) ([]*genai.Content, string, error) {
	var (
		contents []*genai.Content
		system   []string
	)
	if req.SystemPrompt != "" {
		system = append(system, req.SystemPrompt)
	}
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Content)
		case llm.RoleUser:
			contents = append(contents, &genai.Content{Role: roleUser, Parts: []*genai.Part{genai.NewPartFromText(m.Content)}})
		case llm.RoleAssistant:
			contents = append(contents, &genai.Content{Role: roleModel, Parts: []*genai.Part{genai.NewPartFromText(m.Content)}})
		default:
			return nil, "", fmt.Errorf("unknown message role %q", m.Role)
		}
	}
	if len(contents) == 0 {
		return nil, "", errors.New("no contents")
	}
	return contents, strings.Join(system, "\n\n"), nil
}

// buildConfig maps request knobs onto a GenerateContentConfig.
func buildConfig(req llm.CompletionRequest, system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(system)}}
	}
	if req.JSONMode {
		cfg.ResponseMIMEType = jsonMIMEType
	}
	if req.Temperature != 0 {
		t := float32(req.Temperature)
		cfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	return cfg
}

// extractText concatenates the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

func convertUsage(usage *genai.GenerateContentResponseUsageMetadata) llm.Usage {
	if usage == nil {
		return llm.Usage{}
	}
	return llm.Usage{
		PromptTokens:     int(usage.PromptTokenCount),
		CompletionTokens: int(usage.CandidatesTokenCount),
		TotalTokens:      int(usage.TotalTokenCount),
	}
}
