package interview

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// ErrMalformedResponse is returned when a reasoning-service reply is not a
// JSON document of the expected shape. Callers treat it as a service failure.
var ErrMalformedResponse = errors.New("interview: malformed response")

const (
	minScore = 0
	maxScore = 5
)

var scoreFields = []string{"relevance", "impact", "strategy", "clarity", "communication"}

// Resolved schemas are built once from the Go payload types.
var (
	evaluationSchema = sync.OnceValues(buildEvaluationSchema)
	summarySchema    = sync.OnceValues(buildSummarySchema)
)

func buildEvaluationSchema() (*jsonschema.Resolved, error) {
	s, err := jsonschema.For[Evaluation](&jsonschema.ForOptions{})
	if err != nil {
		return nil, err
	}
	s.Required = []string{"scores", "feedback", "overall"}
	scores := s.Properties["scores"]
	if scores == nil {
		return nil, errors.New("evaluation schema has no scores property")
	}
	scores.Required = scoreFields
	for _, name := range scoreFields {
		p := scores.Properties[name]
		if p == nil {
			return nil, fmt.Errorf("evaluation schema has no %s score", name)
		}
		bound(p)
	}
	bound(s.Properties["overall"])
	return s.Resolve(nil)
}

func buildSummarySchema() (*jsonschema.Resolved, error) {
	s, err := jsonschema.For[OverallSummary](&jsonschema.ForOptions{})
	if err != nil {
		return nil, err
	}
	s.Required = []string{"summary", "total_average"}
	bound(s.Properties["total_average"])
	return s.Resolve(nil)
}

// bound limits a numeric property to the rubric range.
func bound(p *jsonschema.Schema) {
	if p == nil {
		return
	}
	lo, hi := float64(minScore), float64(maxScore)
	p.Minimum = &lo
	p.Maximum = &hi
}

// ParseEvaluation decodes and validates a per-answer evaluation reply.
func ParseEvaluation(raw string) (Evaluation, error) {
	var ev Evaluation
	if err := parseStrict(raw, evaluationSchema, &ev); err != nil {
		return Evaluation{}, err
	}
	return ev, nil
}

// ParseSummary decodes and validates an aggregate summary reply.
func ParseSummary(raw string) (OverallSummary, error) {
	var sum OverallSummary
	if err := parseStrict(raw, summarySchema, &sum); err != nil {
		return OverallSummary{}, err
	}
	if strings.TrimSpace(sum.Summary) == "" {
		return OverallSummary{}, fmt.Errorf("%w: empty summary", ErrMalformedResponse)
	}
	return sum, nil
}

// parseStrict strips Markdown fences, validates the document against the
// schema, and decodes it into dst rejecting unknown fields. Decoding works on
// the re-encoded document, so whole numbers written as 4.0 fit int fields.
func parseStrict(raw string, schema func() (*jsonschema.Resolved, error), dst any) error {
	body := stripFences(raw)
	if body == "" {
		return fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if _, ok := doc.(map[string]any); !ok {
		return fmt.Errorf("%w: top-level value is not an object", ErrMalformedResponse)
	}

	resolved, err := schema()
	if err != nil {
		return fmt.Errorf("interview: build response schema: %w", err)
	}
	if err := resolved.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	dec := json.NewDecoder(bytes.NewReader(normalized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// stripFences removes a surrounding ```json ... ``` block if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
