package gemini

import (
	"context"
	"testing"

	"google.golang.org/genai"

	"github.com/MrWong99/mockinterview/pkg/provider/llm"
)

func TestNew_EmptyAPIKey(t *testing.T) {
	_, err := New(context.Background(), "")
	if err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestNew_Defaults(t *testing.T) {
	p, err := New(context.Background(), "test-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.model != defaultModel {
		t.Errorf("model = %q, want %q", p.model, defaultModel)
	}
	if !p.Capabilities().SupportsJSONMode {
		t.Error("expected SupportsJSONMode=true")
	}
}

func TestBuildContents(t *testing.T) {
	req := llm.CompletionRequest{
		SystemPrompt: "You are an evaluator.",
		Messages: []llm.Message{
			{Role: "system", Content: "Be strict."},
			llm.UserMessage("Question and answer"),
			{Role: "assistant", Content: "ok"},
		},
	}
	contents, system, err := buildContents(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if system != "You are an evaluator.\n\nBe strict." {
		t.Errorf("system = %q", system)
	}
	if len(contents) != 2 {
		t.Fatalf("contents = %d, want 2", len(contents))
	}
	if contents[0].Role != roleUser {
		t.Errorf("contents[0].Role = %q, want user", contents[0].Role)
	}
	if contents[1].Role != roleModel {
		t.Errorf("contents[1].Role = %q, want model", contents[1].Role)
	}
	if contents[0].Parts[0].Text != "Question and answer" {
		t.Errorf("contents[0] text = %q", contents[0].Parts[0].Text)
	}
}

func TestBuildContents_Errors(t *testing.T) {
	tests := []struct {
		name string
		req  llm.CompletionRequest
	}{
		{"no messages", llm.CompletionRequest{SystemPrompt: "x"}},
		{"only system", llm.CompletionRequest{Messages: []llm.Message{{Role: "system", Content: "x"}}}},
		{"unknown role", llm.CompletionRequest{Messages: []llm.Message{{Role: "tool", Content: "x"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := buildContents(tt.req); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBuildConfig(t *testing.T) {
	cfg := buildConfig(llm.CompletionRequest{JSONMode: true, Temperature: 0.4, MaxTokens: 300}, "sys")
	if cfg.ResponseMIMEType != "application/json" {
		t.Errorf("ResponseMIMEType = %q, want application/json", cfg.ResponseMIMEType)
	}
	if cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "sys" {
		t.Error("expected system instruction to be set")
	}
	if cfg.Temperature == nil || *cfg.Temperature != float32(0.4) {
		t.Errorf("Temperature = %v, want 0.4", cfg.Temperature)
	}
	if cfg.MaxOutputTokens != 300 {
		t.Errorf("MaxOutputTokens = %d, want 300", cfg.MaxOutputTokens)
	}

	plain := buildConfig(llm.CompletionRequest{}, "")
	if plain.ResponseMIMEType != "" || plain.SystemInstruction != nil || plain.Temperature != nil {
		t.Errorf("expected empty config, got %+v", plain)
	}
}

func TestExtractText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: `{"summary":`}, {Text: `"ok"}`}}},
		}},
	}
	if got := extractText(resp); got != `{"summary":"ok"}` {
		t.Errorf("extractText = %q", got)
	}
	if got := extractText(nil); got != "" {
		t.Errorf("extractText(nil) = %q, want empty", got)
	}
	if got := extractText(&genai.GenerateContentResponse{}); got != "" {
		t.Errorf("extractText(no candidates) = %q, want empty", got)
	}
}

func TestConvertUsage(t *testing.T) {
	u := convertUsage(&genai.GenerateContentResponseUsageMetadata{
		PromptTokenCount:     12,
		CandidatesTokenCount: 30,
		TotalTokenCount:      42,
	})
	if u.PromptTokens != 12 || u.CompletionTokens != 30 || u.TotalTokens != 42 {
		t.Errorf("usage = %+v", u)
	}
	if convertUsage(nil) != (llm.Usage{}) {
		t.Error("expected zero usage for nil metadata")
	}
}
