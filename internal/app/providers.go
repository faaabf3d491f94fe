package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/mockinterview/internal/config"
	"github.com/MrWong99/mockinterview/internal/observe"
	"github.com/MrWong99/mockinterview/internal/resilience"
	"github.com/MrWong99/mockinterview/pkg/provider/llm"
	"github.com/MrWong99/mockinterview/pkg/provider/tts"
)

const (
	kindLLM = observe.KindLLM
	kindTTS = observe.KindTTS
)

// named pairs a constructed provider with its configured name.
type named[P any] struct {
	name     string
	provider P
}

// BuildProviders instantiates the configured reasoning and voice services
// through reg. The primary entry and its fallbacks are wrapped in a
// [resilience.LLMFallback] or [resilience.TTSFallback] with one circuit
// breaker per entry; every attempt is recorded on m.
//
// Entries without credentials, or whose name has no registered factory, are
// skipped with a warning. When no entry of a kind remains, the field stays nil
// and the dependent feature is disabled. A factory error is returned.
func BuildProviders(cfg *config.Config, reg *config.Registry, m *observe.Metrics) (*Providers, error) {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	ps := &Providers{}
	cb := cfg.Providers.CircuitBreaker

	llms, err := instantiate(kindLLM, cfg.Providers.LLM, reg.CreateLLM)
	if err != nil {
		return nil, err
	}
	if len(llms) > 0 {
		fb := resilience.NewLLMFallback(llms[0].provider, llms[0].name, fallbackConfig(kindLLM, cb, m))
		for _, n := range llms[1:] {
			fb.AddFallback(n.name, n.provider)
		}
		ps.LLM = fb
	}

	voices, err := instantiate(kindTTS, cfg.Providers.TTS, reg.CreateTTS)
	if err != nil {
		return nil, err
	}
	if len(voices) > 0 {
		fb := resilience.NewTTSFallback(voices[0].provider, voices[0].name, fallbackConfig(kindTTS, cb, m))
		for _, n := range voices[1:] {
			fb.AddFallback(n.name, n.provider)
		}
		ps.TTS = fb
	}

	return ps, nil
}

// instantiate creates the primary entry and each fallback, in order.
func instantiate[P any](kind string, primary config.ProviderEntry, create func(config.ProviderEntry) (P, error)) ([]named[P], error) {
	entries := append([]config.ProviderEntry{primary}, primary.Fallbacks...)
	var out []named[P]
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		if e.APIKey == "" && config.RequiresAPIKey(e.Name) {
			slog.Warn("provider has no API key; skipping", "kind", kind, "name", e.Name)
			continue
		}
		p, err := create(e)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("provider not registered; skipping", "kind", kind, "name", e.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("app: create %s provider %q: %w", kind, e.Name, err)
		}
		slog.Info("provider created", "kind", kind, "name", e.Name, "model", e.Model)
		out = append(out, named[P]{name: e.Name, provider: p})
	}
	return out, nil
}

// fallbackConfig maps the breaker settings and records every provider
// attempt and breaker transition on m.
func fallbackConfig(kind string, cb config.CircuitBreakerConfig, m *observe.Metrics) resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cb.MaxFailures,
			ResetTimeout: cb.ResetTimeout,
			HalfOpenMax:  cb.HalfOpenMax,
			OnStateChange: func(provider string, _, to resilience.State) {
				m.RecordBreakerTransition(context.Background(), provider, kind, to.String())
			},
		},
		OnResult: func(provider string, elapsed time.Duration, err error) {
			m.RecordProviderAttempt(context.Background(), kind, provider, elapsed, providerStatus(err))
		},
	}
}

// providerStatus classifies an attempt's outcome for the status attribute.
func providerStatus(err error) string {
	switch {
	case err == nil:
		return observe.StatusOK
	case errors.Is(err, tts.ErrUnauthorized), errors.Is(err, llm.ErrUnauthorized):
		return observe.StatusUnauthorized
	case errors.Is(err, tts.ErrRateLimited), errors.Is(err, llm.ErrRateLimited):
		return observe.StatusRateLimited
	default:
		return observe.StatusError
	}
}
