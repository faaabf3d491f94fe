package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/mockinterview/internal/observe"
	"github.com/MrWong99/mockinterview/internal/storage"
	"github.com/MrWong99/mockinterview/pkg/provider/tts"
)

// Default voice settings for question read-out.
const (
	DefaultVoiceID      = "JBFqnCBsd6RMkjVDRZzb"
	DefaultVoiceModel   = "eleven_multilingual_v2"
	DefaultOutputFormat = "mp3_44100_128"
)

// DefaultVoice returns the voice profile used when none is configured.
func DefaultVoice() tts.VoiceProfile {
	return tts.VoiceProfile{
		ID:           DefaultVoiceID,
		Provider:     "elevenlabs",
		Model:        DefaultVoiceModel,
		OutputFormat: DefaultOutputFormat,
	}
}

// SynthOption configures a [Synthesizer].
type SynthOption func(*Synthesizer)

// WithVoice overrides the voice profile.
func WithVoice(v tts.VoiceProfile) SynthOption {
	return func(s *Synthesizer) { s.voice = v }
}

// WithReuseExisting makes the synthesizer reuse an artifact already present
// in the store instead of requesting it again.
func WithReuseExisting(reuse bool) SynthOption {
	return func(s *Synthesizer) { s.reuse = reuse }
}

// WithSynthesisTimeout bounds each synthesis request. Zero means no bound.
func WithSynthesisTimeout(d time.Duration) SynthOption {
	return func(s *Synthesizer) { s.timeout = d }
}

// Synthesizer turns question text into stored audio artifacts.
type Synthesizer struct {
	tts     tts.Provider
	store   storage.FileStore
	voice   tts.VoiceProfile
	reuse   bool
	timeout time.Duration
}

// NewSynthesizer creates a [Synthesizer]. provider may be nil, in which case
// [Synthesizer.Enabled] reports false and the session skips audio entirely.
func NewSynthesizer(provider tts.Provider, store storage.FileStore, opts ...SynthOption) *Synthesizer {
	s := &Synthesizer{tts: provider, store: store, voice: DefaultVoice()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Enabled reports whether both a voice service and a store are configured.
func (s *Synthesizer) Enabled() bool {
	return s != nil && s.tts != nil && s.store != nil
}

// ArtifactName returns the stored filename for a question's audio, e.g.
// "question_3.mp3". The extension follows the codec prefix of the output
// format.
func (s *Synthesizer) ArtifactName(id int) string {
	return fmt.Sprintf("question_%d.%s", id, extensionFor(s.voice.OutputFormat))
}

// Synthesize renders q and stores the result, returning the artifact name.
// Errors from the voice service keep their [tts.ErrUnauthorized] or
// [tts.ErrRateLimited] classification.
func (s *Synthesizer) Synthesize(ctx context.Context, q Question) (string, error) {
	if !s.Enabled() {
		return "", ErrNotConfigured
	}
	name := s.ArtifactName(q.ID)

	if s.reuse {
		ok, err := s.store.Exists(ctx, name)
		if err != nil {
			return "", fmt.Errorf("interview: check artifact %s: %w", name, err)
		}
		if ok {
			return name, nil
		}
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	audio, err := s.tts.Synthesize(callCtx, q.Text, s.voice)
	if err != nil {
		return "", fmt.Errorf("interview: synthesize question %d: %w", q.ID, err)
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("interview: synthesize question %d: empty audio", q.ID)
	}
	if err := storage.WriteFile(ctx, s.store, name, audio); err != nil {
		return "", fmt.Errorf("interview: store question %d audio: %w", q.ID, err)
	}
	return name, nil
}

// synthesisStatus maps an error onto a metrics status label.
func synthesisStatus(err error) string {
	switch {
	case err == nil:
		return observe.StatusOK
	case errors.Is(err, tts.ErrUnauthorized):
		return observe.StatusUnauthorized
	case errors.Is(err, tts.ErrRateLimited):
		return observe.StatusRateLimited
	}
	return observe.StatusError
}

func extensionFor(format string) string {
	codec, _, _ := strings.Cut(format, "_")
	switch codec {
	case "":
		return "mp3"
	case "ulaw", "alaw":
		return "wav"
	}
	return codec
}
