package resilience

import (
	"context"

	"github.com/MrWong99/mockinterview/pkg/provider/tts"
)

var _ tts.Provider = (*TTSFallback)(nil)

// TTSFallback is a [tts.Provider] that fails over across voice backends. The
// voice profile is sent unchanged to each of them.
type TTSFallback struct {
	*Group[tts.Provider]
}

// NewTTSFallback starts a failover chain with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	g := NewGroup[tts.Provider](cfg)
	g.Add(primaryName, primary)
	return &TTSFallback{Group: g}
}

// AddFallback appends a backend to the chain.
func (f *TTSFallback) AddFallback(name string, p tts.Provider) { f.Add(name, p) }

// Synthesize implements [tts.Provider].
func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) ([]byte, error) {
	return Call(ctx, f.Group, func(ctx context.Context, p tts.Provider) ([]byte, error) {
		return p.Synthesize(ctx, text, voice)
	})
}

// ListVoices implements [tts.Provider].
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return Call(ctx, f.Group, func(ctx context.Context, p tts.Provider) ([]tts.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}
