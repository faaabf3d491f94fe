package interview

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/mockinterview/internal/observe"
	"github.com/MrWong99/mockinterview/pkg/provider/llm"
)

// ErrNotConfigured is returned by orchestrators whose external service has no
// credentials configured. The affected feature degrades silently.
var ErrNotConfigured = errors.New("interview: service not configured")

// Scores holds the five rubric criteria, each in [0, 5].
type Scores struct {
	Relevance     int `json:"relevance"`
	Impact        int `json:"impact"`
	Strategy      int `json:"strategy"`
	Clarity       int `json:"clarity"`
	Communication int `json:"communication"`
}

// Evaluation is the structured assessment of one answer.
type Evaluation struct {
	Scores   Scores  `json:"scores"`
	Feedback string  `json:"feedback"`
	Overall  float64 `json:"overall"`
}

// Evaluator produces an [Evaluation] for one question and answer.
type Evaluator interface {
	Evaluate(ctx context.Context, question, answer string) (Evaluation, error)
}

// evaluationPrompt is the rubric prompt. Arguments: question, answer.
const evaluationPrompt = `You are an expert Sales & BD interview evaluator.

Question: %s
Candidate's Answer: %s

Evaluate the answer based on the following rubric, providing a score from 0 to 5 for each category:
- Relevance: How relevant and on-topic was the answer?
- Impact/Results: Did the candidate mention measurable outcomes or clear achievements?
- Strategy/Approach: Did they describe a clear plan or thought process?
- Clarity & Structure: Was the response well-organized and logical?
- Communication & Confidence: How clear and confident was their delivery?

Return a JSON object with this exact structure:
{
  "scores": { "relevance": <score>, "impact": <score>, "strategy": <score>, "clarity": <score>, "communication": <score> },
  "feedback": "<short, constructive feedback text>",
  "overall": <average_score>
}
`

// BuildEvaluationPrompt renders the rubric prompt for one answer.
func BuildEvaluationPrompt(question, answer string) string {
	return fmt.Sprintf(evaluationPrompt, question, answer)
}

// LLMOption configures [LLMEvaluator] and [LLMSummarizer].
type LLMOption func(*llmSettings)

type llmSettings struct {
	temperature float64
	maxTokens   int
}

// WithTemperature sets the sampling temperature sent to the provider.
func WithTemperature(t float64) LLMOption {
	return func(s *llmSettings) { s.temperature = t }
}

// WithMaxTokens caps the response length. Zero leaves the provider default.
func WithMaxTokens(n int) LLMOption {
	return func(s *llmSettings) { s.maxTokens = n }
}

func newLLMSettings(opts []LLMOption) llmSettings {
	s := llmSettings{temperature: 0.2}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// LLMEvaluator scores answers with an LLM provider in JSON mode.
type LLMEvaluator struct {
	llm      llm.Provider
	settings llmSettings
}

// Compile-time interface assertion.
var _ Evaluator = (*LLMEvaluator)(nil)

// NewLLMEvaluator creates an [LLMEvaluator] backed by provider.
func NewLLMEvaluator(provider llm.Provider, opts ...LLMOption) *LLMEvaluator {
	return &LLMEvaluator{llm: provider, settings: newLLMSettings(opts)}
}

// Evaluate sends the rubric prompt and parses the reply strictly. A reply
// that does not match the rubric shape yields an error wrapping
// [ErrMalformedResponse].
func (e *LLMEvaluator) Evaluate(ctx context.Context, question, answer string) (Evaluation, error) {
	if e == nil || e.llm == nil {
		return Evaluation{}, ErrNotConfigured
	}
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{llm.UserMessage(BuildEvaluationPrompt(question, answer))},
		Temperature: e.settings.temperature,
		MaxTokens:   e.settings.maxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return Evaluation{}, fmt.Errorf("interview: evaluate: %w", err)
	}
	if resp == nil {
		return Evaluation{}, fmt.Errorf("%w: no completion returned", ErrMalformedResponse)
	}
	recordUsage(ctx, resp.Usage)
	return ParseEvaluation(resp.Content)
}

// recordUsage puts the token counts of one completion on the active span and
// the debug log. Backends that report nothing are skipped.
func recordUsage(ctx context.Context, u llm.Usage) {
	if u == (llm.Usage{}) {
		return
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("llm.prompt_tokens", u.PromptTokens),
		attribute.Int("llm.completion_tokens", u.CompletionTokens),
		attribute.Int("llm.total_tokens", u.TotalTokens),
	)
	observe.Logger(ctx).Debug("completion usage",
		"prompt_tokens", u.PromptTokens,
		"completion_tokens", u.CompletionTokens,
		"total_tokens", u.TotalTokens,
	)
}
