// Package llm defines the reasoning-service abstraction used to score
// interview answers and write the closing summary.
//
// A [Provider] wraps one hosted or local model API (Gemini, OpenAI, or any
// backend reachable through any-llm) behind a single blocking call that
// returns the whole reply. Replies are plain text; callers that need
// structure set [CompletionRequest.JSONMode] and validate the result.
//
// Implementations must be safe for concurrent use.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Failure classes callers can match with [errors.Is].
var (
	// ErrUnauthorized means the key is missing, invalid, or not allowed to
	// use the model.
	ErrUnauthorized = errors.New("llm: unauthorized")

	// ErrRateLimited means the backend refused the call because of quota.
	ErrRateLimited = errors.New("llm: rate limited")

	// ErrEmptyResponse means the backend answered without any candidate text.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// CompletionRequest is a single prompt for the model. Messages must not be
// empty.
type CompletionRequest struct {
	Messages []Message

	// SystemPrompt is sent ahead of Messages through the backend's dedicated
	// system channel when it has one.
	SystemPrompt string

	// Temperature in [0, 2]. Zero keeps the backend default.
	Temperature float64

	// MaxTokens caps the reply length. Zero keeps the backend default.
	MaxTokens int

	// JSONMode asks for a single JSON object, natively where supported and
	// through [JSONInstruction] otherwise.
	JSONMode bool
}

// CompletionResponse is the model's full reply.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req and blocks until the whole reply arrives or ctx is
	// done. Backend errors are classified with [ErrUnauthorized] and
	// [ErrRateLimited] where the backend reports an HTTP status.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities is constant for the lifetime of the provider.
	Capabilities() ModelCapabilities
}

// APIError annotates a backend error with the HTTP status it carried.
type APIError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
}

// Unwrap exposes the backend error and, when the status maps to one, the
// matching failure class.
func (e *APIError) Unwrap() []error {
	errs := []error{e.Err}
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		errs = append(errs, ErrUnauthorized)
	case http.StatusTooManyRequests:
		errs = append(errs, ErrRateLimited)
	}
	return errs
}
