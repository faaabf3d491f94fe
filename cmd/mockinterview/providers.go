package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/mockinterview/internal/config"
	"github.com/MrWong99/mockinterview/pkg/provider/llm"
	"github.com/MrWong99/mockinterview/pkg/provider/llm/anyllm"
	"github.com/MrWong99/mockinterview/pkg/provider/llm/gemini"
	"github.com/MrWong99/mockinterview/pkg/provider/llm/openai"
	"github.com/MrWong99/mockinterview/pkg/provider/tts"
	"github.com/MrWong99/mockinterview/pkg/provider/tts/elevenlabs"
)

// nativeLLMs have a dedicated SDK client. Every other any-llm-go backend is
// registered through the generic adapter.
var nativeLLMs = map[string]config.Factory[llm.Provider]{
	"gemini": newGemini,
	"openai": newOpenAI,
}

// registerBuiltinProviders wires every built-in factory into reg.
func registerBuiltinProviders(reg *config.Registry) {
	for name, f := range nativeLLMs {
		reg.RegisterLLM(name, f)
	}
	for _, name := range anyllm.SupportedProviders() {
		if _, ok := nativeLLMs[name]; ok {
			continue
		}
		reg.RegisterLLM(name, anyLLMFactory(name))
	}
	reg.RegisterTTS("elevenlabs", newElevenLabs)

	slog.Debug("registered providers", "llm", reg.LLMNames(), "tts", reg.TTSNames())
}

func newGemini(e config.ProviderEntry) (llm.Provider, error) {
	var opts []gemini.Option
	if e.Model != "" {
		opts = append(opts, gemini.WithModel(e.Model))
	}
	if e.BaseURL != "" {
		opts = append(opts, gemini.WithBaseURL(e.BaseURL))
	}
	return gemini.New(context.Background(), e.APIKey, opts...)
}

// newOpenAI understands the options organization, timeout (a duration
// string) and max_retries.
func newOpenAI(e config.ProviderEntry) (llm.Provider, error) {
	var opts []openai.Option
	if e.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(e.BaseURL))
	}
	if org := optString(e.Options, "organization"); org != "" {
		opts = append(opts, openai.WithOrganization(org))
	}
	if s := optString(e.Options, "timeout"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("openai: options.timeout: %w", err)
		}
		opts = append(opts, openai.WithTimeout(d))
	}
	if n, ok := optInt(e.Options, "max_retries"); ok {
		opts = append(opts, openai.WithMaxRetries(n))
	}
	return openai.New(e.APIKey, e.Model, opts...)
}

func anyLLMFactory(name string) config.Factory[llm.Provider] {
	return func(e config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if e.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(e.APIKey))
		}
		if e.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(e.BaseURL))
		}
		return anyllm.New(name, e.Model, opts...)
	}
}

// newElevenLabs understands the option output_format.
func newElevenLabs(e config.ProviderEntry) (tts.Provider, error) {
	var opts []elevenlabs.Option
	if e.Model != "" {
		opts = append(opts, elevenlabs.WithModel(e.Model))
	}
	if f := optString(e.Options, "output_format"); f != "" {
		opts = append(opts, elevenlabs.WithOutputFormat(f))
	}
	if e.BaseURL != "" {
		opts = append(opts, elevenlabs.WithBaseURL(e.BaseURL))
	}
	return elevenlabs.New(e.APIKey, opts...)
}

func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optInt accepts the integer shapes a YAML decoder produces.
func optInt(opts map[string]any, key string) (int, bool) {
	switch v := opts[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}
