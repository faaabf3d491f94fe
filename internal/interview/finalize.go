package interview

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/mockinterview/pkg/provider/llm"
)

// noAnswerPlaceholder stands in for unanswered questions in the transcript.
const noAnswerPlaceholder = "No answer."

// OverallSummary is the aggregate assessment produced at interview end.
type OverallSummary struct {
	Summary      string  `json:"summary"`
	TotalAverage float64 `json:"total_average"`
}

// Summarizer produces an [OverallSummary] from a flattened transcript.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (OverallSummary, error)
}

// summaryPrompt asks for the final hiring-manager summary. Argument: transcript.
const summaryPrompt = `You are an expert Sales & BD hiring manager. Based on the full interview transcript below, provide a final summary of the candidate's performance.

Transcript:
%s

Return a JSON object with this exact structure:
{
  "summary": "<A brief 3-4 sentence summary of the candidate's overall strengths and areas for improvement.>",
  "total_average": <A float representing the average of all question scores from the transcript analysis>
}
`

// BuildTranscript flattens the catalog and answers into the summarizer input.
// Every question appears in catalog order; unanswered ones get a placeholder.
func BuildTranscript(questions []Question, answers map[int]string) string {
	var sb strings.Builder
	for _, q := range questions {
		a, ok := answers[q.ID]
		if !ok || a == "" {
			a = noAnswerPlaceholder
		}
		fmt.Fprintf(&sb, "Q%d: %s\nA: %s\n\n", q.ID, q.Text, a)
	}
	return sb.String()
}

// BuildSummaryPrompt renders the summary prompt for a transcript.
func BuildSummaryPrompt(transcript string) string {
	return fmt.Sprintf(summaryPrompt, transcript)
}

// LLMSummarizer produces the final summary with an LLM provider in JSON mode.
type LLMSummarizer struct {
	llm      llm.Provider
	settings llmSettings
}

// Compile-time interface assertion.
var _ Summarizer = (*LLMSummarizer)(nil)

// NewLLMSummarizer creates an [LLMSummarizer] backed by provider.
func NewLLMSummarizer(provider llm.Provider, opts ...LLMOption) *LLMSummarizer {
	return &LLMSummarizer{llm: provider, settings: newLLMSettings(opts)}
}

// Summarize sends the transcript and parses the reply strictly.
func (s *LLMSummarizer) Summarize(ctx context.Context, transcript string) (OverallSummary, error) {
	if s == nil || s.llm == nil {
		return OverallSummary{}, ErrNotConfigured
	}
	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{llm.UserMessage(BuildSummaryPrompt(transcript))},
		Temperature: s.settings.temperature,
		MaxTokens:   s.settings.maxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return OverallSummary{}, fmt.Errorf("interview: summarize: %w", err)
	}
	if resp == nil {
		return OverallSummary{}, fmt.Errorf("%w: no completion returned", ErrMalformedResponse)
	}
	recordUsage(ctx, resp.Usage)
	return ParseSummary(resp.Content)
}
