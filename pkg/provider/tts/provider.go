// Package tts is the speech synthesis side of the interview: a [Provider]
// renders one question's text into one encoded audio file that is stored and
// served to the browser unchanged.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Failure classes callers match with [errors.Is]. Anything else is a generic
// service failure.
var (
	// ErrUnauthorized covers missing or invalid credentials and keys without
	// the text-to-speech permission.
	ErrUnauthorized = errors.New("tts: unauthorized")

	// ErrRateLimited covers quota and concurrency rejections.
	ErrRateLimited = errors.New("tts: rate limited")
)

// Provider synthesises speech.
type Provider interface {
	// Synthesize returns the complete encoded audio for text.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) ([]byte, error)

	// ListVoices returns the voices the credentials can use.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}

// VoiceProfile selects and tunes the interviewer's voice. Zero fields mean
// the provider default.
type VoiceProfile struct {
	ID       string
	Name     string
	Provider string

	// Model is a provider model ID such as "eleven_multilingual_v2".
	Model string

	// OutputFormat is codec, sample rate and bitrate, e.g. "mp3_44100_128".
	OutputFormat string

	// Stability and SimilarityBoost are in [0, 1].
	Stability       float64
	SimilarityBoost float64

	// SpeedFactor scales the speaking rate within [0.7, 1.2].
	SpeedFactor float64

	// Metadata carries provider labels like accent or age.
	Metadata map[string]string
}

// StatusError is a non-success HTTP answer from a voice backend.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s: %d %s", e.Provider, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap exposes [ErrUnauthorized] for 401 and 403 and [ErrRateLimited] for
// 429.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return nil
	}
}
