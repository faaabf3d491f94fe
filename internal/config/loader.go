package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr      = ":8080"
	DefaultShutdownTimeout = 15 * time.Second
	DefaultStorageDir      = "uploaded_files"
	DefaultLLMProvider     = "gemini"
	DefaultLLMModel        = "gemini-2.5-flash"
	DefaultTTSProvider     = "elevenlabs"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"gemini", "openai", "anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts": {"elevenlabs"},
}

// Default returns the configuration used when no file is given: Gemini for
// evaluation, ElevenLabs for question audio, local artifact storage.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Unknown keys are rejected. An empty document yields the
// defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields with their defaults. Credentials are left
// alone; see [ApplyEnv].
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Providers.LLM.Name == "" {
		cfg.Providers.LLM.Name = DefaultLLMProvider
	}
	if cfg.Providers.LLM.Name == DefaultLLMProvider && cfg.Providers.LLM.Model == "" {
		cfg.Providers.LLM.Model = DefaultLLMModel
	}
	if cfg.Providers.TTS.Name == "" {
		cfg.Providers.TTS.Name = DefaultTTSProvider
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageLocal
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = DefaultStorageDir
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout %v must not be negative", cfg.Server.ShutdownTimeout))
	}

	// Providers
	errs = append(errs, validateProvider("llm", "providers.llm", cfg.Providers.LLM)...)
	errs = append(errs, validateProvider("tts", "providers.tts", cfg.Providers.TTS)...)
	cb := cfg.Providers.CircuitBreaker
	if cb.MaxFailures < 0 || cb.HalfOpenMax < 0 || cb.ResetTimeout < 0 {
		errs = append(errs, errors.New("providers.circuit_breaker values must not be negative"))
	}

	// Interview
	iv := cfg.Interview
	seen := make(map[int]int, len(iv.Questions))
	for i, q := range iv.Questions {
		prefix := fmt.Sprintf("interview.questions[%d]", i)
		if q.ID <= 0 {
			errs = append(errs, fmt.Errorf("%s.id must be positive, got %d", prefix, q.ID))
		} else if prev, ok := seen[q.ID]; ok {
			errs = append(errs, fmt.Errorf("%s.id %d is a duplicate of interview.questions[%d]", prefix, q.ID, prev))
		} else {
			seen[q.ID] = i
		}
		if q.Text == "" {
			errs = append(errs, fmt.Errorf("%s.text is required", prefix))
		}
	}
	if iv.EvaluationTimeout < 0 {
		errs = append(errs, fmt.Errorf("interview.evaluation_timeout %v must not be negative", iv.EvaluationTimeout))
	}
	if iv.SynthesisTimeout < 0 {
		errs = append(errs, fmt.Errorf("interview.synthesis_timeout %v must not be negative", iv.SynthesisTimeout))
	}
	if t := iv.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("interview.temperature %.2f is out of range [0, 2]", *t))
	}
	v := iv.Voice
	if v.Stability < 0 || v.Stability > 1 {
		errs = append(errs, fmt.Errorf("interview.voice.stability %.2f is out of range [0, 1]", v.Stability))
	}
	if v.SimilarityBoost < 0 || v.SimilarityBoost > 1 {
		errs = append(errs, fmt.Errorf("interview.voice.similarity_boost %.2f is out of range [0, 1]", v.SimilarityBoost))
	}
	if v.SpeedFactor != 0 && (v.SpeedFactor < 0.7 || v.SpeedFactor > 1.2) {
		errs = append(errs, fmt.Errorf("interview.voice.speed_factor %.2f is out of range [0.7, 1.2]", v.SpeedFactor))
	}

	// Storage
	if !cfg.Storage.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("storage.backend %q is invalid; valid values: local, s3", cfg.Storage.Backend))
	}
	if cfg.Storage.Backend == StorageS3 && cfg.Storage.S3.Bucket == "" {
		errs = append(errs, errors.New("storage.s3.bucket is required when storage.backend is s3"))
	}

	return errors.Join(errs...)
}

func validateProvider(kind, path string, e ProviderEntry) []error {
	var errs []error
	warnUnknownProvider(kind, e.Name)
	for i, fb := range e.Fallbacks {
		prefix := fmt.Sprintf("%s.fallbacks[%d]", path, i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if len(fb.Fallbacks) > 0 {
			errs = append(errs, fmt.Errorf("%s.fallbacks: nested fallbacks are not supported", prefix))
		}
		warnUnknownProvider(kind, fb.Name)
	}
	return errs
}

// warnUnknownProvider logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func warnUnknownProvider(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or a custom registration",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
