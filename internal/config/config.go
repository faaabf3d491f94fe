// Package config provides the configuration schema, loader, and provider
// registry for the mock interview server.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// StorageBackend selects where question audio is stored.
type StorageBackend string

const (
	StorageLocal StorageBackend = "local"
	StorageS3    StorageBackend = "s3"
)

// IsValid reports whether b is a recognised storage backend.
func (b StorageBackend) IsValid() bool {
	return b == StorageLocal || b == StorageS3
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Interview InterviewConfig `yaml:"interview"`
	Storage   StorageConfig   `yaml:"storage"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`

	// ShutdownTimeout bounds graceful shutdown, including the wait for
	// in-flight evaluations. Default: 15s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig selects the reasoning (LLM) and voice (TTS) services.
type ProvidersConfig struct {
	LLM ProviderEntry `yaml:"llm"`
	TTS ProviderEntry `yaml:"tts"`

	// CircuitBreaker tunes the per-provider breakers shared by both kinds.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ProviderEntry is the configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "gemini",
	// "elevenlabs"). Empty disables the service.
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API. When empty,
	// [ApplyEnv] fills it from the provider's conventional variable.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`

	// Fallbacks are tried in order when this provider fails or its circuit
	// breaker is open. Nested fallbacks are not allowed.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// CircuitBreakerConfig mirrors the resilience breaker knobs. Zero values
// select the breaker defaults.
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`
}

// InterviewConfig holds interview content and orchestration settings.
type InterviewConfig struct {
	// Voice configures question read-out.
	Voice VoiceConfig `yaml:"voice"`

	// Questions replaces the built-in catalog when non-empty.
	Questions []QuestionConfig `yaml:"questions"`

	// EvaluationTimeout bounds each evaluation and summary call. Zero means
	// no bound.
	EvaluationTimeout time.Duration `yaml:"evaluation_timeout"`

	// SynthesisTimeout bounds each question synthesis call. Zero means no
	// bound.
	SynthesisTimeout time.Duration `yaml:"synthesis_timeout"`

	// ReuseAudio skips synthesis for questions whose artifact already exists
	// in storage.
	ReuseAudio bool `yaml:"reuse_audio"`

	// Temperature is the sampling temperature for evaluation and summary
	// requests. Nil selects the default of 0.2.
	Temperature *float64 `yaml:"temperature"`
}

// VoiceConfig specifies the TTS voice parameters.
type VoiceConfig struct {
	// VoiceID is the provider-specific voice identifier.
	VoiceID string `yaml:"voice_id"`

	// Model is the synthesis model (e.g., "eleven_multilingual_v2").
	Model string `yaml:"model"`

	// OutputFormat is the provider output format (e.g., "mp3_44100_128").
	OutputFormat string `yaml:"output_format"`

	// Stability and SimilarityBoost are in [0, 1]. Zero leaves the provider
	// default.
	Stability       float64 `yaml:"stability"`
	SimilarityBoost float64 `yaml:"similarity_boost"`

	// SpeedFactor adjusts speaking rate in the range [0.7, 1.2]. Zero means
	// default.
	SpeedFactor float64 `yaml:"speed_factor"`
}

// QuestionConfig is one catalog entry.
type QuestionConfig struct {
	ID   int    `yaml:"id"`
	Text string `yaml:"text"`
}

// StorageConfig selects and configures the audio artifact store.
type StorageConfig struct {
	// Backend is "local" (default) or "s3".
	Backend StorageBackend `yaml:"backend"`

	// Dir is the local storage directory. Default: "uploaded_files".
	Dir string `yaml:"dir"`

	// S3 configures the s3 backend.
	S3 S3Config `yaml:"s3"`
}

// S3Config configures an S3-compatible bucket.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`

	// Endpoint targets an S3-compatible service such as MinIO or R2.
	Endpoint string `yaml:"endpoint"`

	// UsePathStyle is usually required together with Endpoint.
	UsePathStyle bool `yaml:"use_path_style"`

	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}
