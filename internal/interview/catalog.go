// Package interview implements the mock interview session: the question
// catalog, the session state machine, and the background orchestrators that
// synthesize question audio, evaluate answers, and produce the final summary.
//
// A [Session] is the single owner of all interview state. Foreground
// transitions ([Session.Next], [Session.ToggleRecording], ...) and background
// commits each run in one short critical section; calls to external services
// never hold the session lock.
//
// All exported types are safe for concurrent use.
package interview

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Question is one entry of the interview catalog.
type Question struct {
	// ID is the stable, 1-based question identifier.
	ID int

	// Text is the question as read to the candidate.
	Text string

	// AudioFile is the artifact name of the synthesized question audio, or
	// empty when none exists yet.
	AudioFile string
}

// MarshalJSON renders a missing audio file as null.
func (q Question) MarshalJSON() ([]byte, error) {
	var audio *string
	if q.AudioFile != "" {
		audio = &q.AudioFile
	}
	return json.Marshal(struct {
		ID        int     `json:"id"`
		Text      string  `json:"text"`
		AudioFile *string `json:"audio_file"`
	}{q.ID, q.Text, audio})
}

// DefaultQuestions returns a fresh copy of the built-in Sales & Business
// Development catalog.
func DefaultQuestions() []Question {
	return []Question{
		{ID: 1, Text: "Tell me about your most successful sales campaign — what made it effective?"},
		{ID: 2, Text: "Describe a time you had to handle a difficult client. What was the situation and how did you manage it?"},
		{ID: 3, Text: "How do you identify and qualify potential leads? What tools or strategies do you use?"},
		{ID: 4, Text: "Walk me through your process for closing a complex, high-value deal from start to finish."},
		{ID: 5, Text: "How do you stay updated on industry trends and competitor activities, and how do you use that information?"},
		{ID: 6, Text: "Describe a situation where you failed to meet a sales target. What did you learn from that experience?"},
		{ID: 7, Text: "Imagine you need to break into a new, untapped market. What would be your 90-day plan?"},
	}
}

// ValidateQuestions checks that a catalog is usable: at least one question,
// positive unique ids, and non-empty text. All problems are reported at once.
func ValidateQuestions(qs []Question) error {
	if len(qs) == 0 {
		return errors.New("interview: catalog must contain at least one question")
	}
	var errs []error
	seen := make(map[int]bool, len(qs))
	for i, q := range qs {
		if q.ID <= 0 {
			errs = append(errs, fmt.Errorf("interview: question[%d]: id must be positive, got %d", i, q.ID))
		}
		if seen[q.ID] {
			errs = append(errs, fmt.Errorf("interview: question[%d]: duplicate id %d", i, q.ID))
		}
		seen[q.ID] = true
		if q.Text == "" {
			errs = append(errs, fmt.Errorf("interview: question[%d]: text must not be empty", i))
		}
	}
	return errors.Join(errs...)
}
