package config

// apiKeyEnv maps provider names to the environment variables consulted, in
// order, for a missing API key.
var apiKeyEnv = map[string][]string{
	"gemini":     {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	"openai":     {"OPENAI_API_KEY"},
	"anthropic":  {"ANTHROPIC_API_KEY"},
	"deepseek":   {"DEEPSEEK_API_KEY"},
	"mistral":    {"MISTRAL_API_KEY"},
	"groq":       {"GROQ_API_KEY"},
	"elevenlabs": {"ELEVENLABS_API_KEY"},
}

// keyless lists providers that run locally and need no API key.
var keyless = map[string]bool{
	"ollama":    true,
	"llamacpp":  true,
	"llamafile": true,
}

// RequiresAPIKey reports whether the named provider needs credentials.
func RequiresAPIKey(name string) bool {
	return !keyless[name]
}

// ApplyEnv fills credentials that the file left empty from the environment.
// lookup is usually [os.Getenv]. Values present in the file always win.
func ApplyEnv(cfg *Config, lookup func(string) string) {
	applyProviderEnv(&cfg.Providers.LLM, lookup)
	applyProviderEnv(&cfg.Providers.TTS, lookup)

	s3 := &cfg.Storage.S3
	fill(&s3.AccessKeyID, lookup, "AWS_ACCESS_KEY_ID")
	fill(&s3.SecretAccessKey, lookup, "AWS_SECRET_ACCESS_KEY")
	fill(&s3.Region, lookup, "AWS_REGION", "AWS_DEFAULT_REGION")
}

func applyProviderEnv(e *ProviderEntry, lookup func(string) string) {
	fill(&e.APIKey, lookup, apiKeyEnv[e.Name]...)
	for i := range e.Fallbacks {
		applyProviderEnv(&e.Fallbacks[i], lookup)
	}
}

func fill(dst *string, lookup func(string) string, keys ...string) {
	if *dst != "" {
		return
	}
	for _, k := range keys {
		if v := lookup(k); v != "" {
			*dst = v
			return
		}
	}
}
