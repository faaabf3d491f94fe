// Package elevenlabs implements [tts.Provider] on the ElevenLabs REST API.
//
// Questions are short, so synthesis uses the buffered endpoint and returns
// the whole file at once.
package elevenlabs

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/mockinterview/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

const (
	providerName = "elevenlabs"

	defaultBaseURL      = "https://api.elevenlabs.io"
	defaultModel        = "eleven_multilingual_v2"
	defaultOutputFormat = "mp3_44100_128"

	defaultStability       = 0.5
	defaultSimilarityBoost = 0.75

	errorBodyLimit = 512
)

// Option configures a [Provider].
type Option func(*Provider)

// WithModel sets the model used when a voice profile names none.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithOutputFormat sets the format used when a voice profile names none.
func WithOutputFormat(format string) Option {
	return func(p *Provider) { p.outputFormat = format }
}

// WithBaseURL points the client at another API origin.
func WithBaseURL(base string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(base, "/") }
}

// WithHTTPClient replaces the default client, which has a 60s timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.http = c }
}

// Provider talks to ElevenLabs with one API key.
type Provider struct {
	apiKey       string
	baseURL      string
	model        string
	outputFormat string
	http         *http.Client
}

// New returns a provider for apiKey, which must not be empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: api key is required")
	}
	p := &Provider{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		model:        defaultModel,
		outputFormat: defaultOutputFormat,
		http:         &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

type speechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// speech builds the request body. Profile fields win over the provider
// defaults.
func (p *Provider) speech(text string, voice tts.VoiceProfile) speechRequest {
	req := speechRequest{
		Text:    text,
		ModelID: cmp.Or(voice.Model, p.model),
		VoiceSettings: voiceSettings{
			Stability:       defaultStability,
			SimilarityBoost: defaultSimilarityBoost,
			Speed:           voice.SpeedFactor,
		},
	}
	if voice.Stability > 0 {
		req.VoiceSettings.Stability = voice.Stability
	}
	if voice.SimilarityBoost > 0 {
		req.VoiceSettings.SimilarityBoost = voice.SimilarityBoost
	}
	return req
}

// Synthesize implements [tts.Provider].
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) ([]byte, error) {
	if voice.ID == "" {
		return nil, errors.New("elevenlabs: voice profile has no ID")
	}
	body, err := json.Marshal(p.speech(text, voice))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: encode request: %w", err)
	}
	q := url.Values{"output_format": {cmp.Or(voice.OutputFormat, p.outputFormat)}}

	resp, err := p.do(ctx, http.MethodPost, "/v1/text-to-speech/"+url.PathEscape(voice.ID), q, body, "audio/mpeg")
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: synthesize: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	switch {
	case err != nil:
		return nil, fmt.Errorf("elevenlabs: read audio: %w", err)
	case len(audio) == 0:
		return nil, errors.New("elevenlabs: empty audio response")
	}
	return audio, nil
}

type apiVoice struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Labels   map[string]string `json:"labels"`
}

// ListVoices implements [tts.Provider]. Labels and the voice category end up
// in the profile's Metadata.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	resp, err := p.do(ctx, http.MethodGet, "/v1/voices", nil, nil, "application/json")
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Voices []apiVoice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("elevenlabs: decode voices: %w", err)
	}

	profiles := make([]tts.VoiceProfile, len(out.Voices))
	for i, v := range out.Voices {
		meta := make(map[string]string, len(v.Labels)+1)
		for k, val := range v.Labels {
			meta[k] = val
		}
		if v.Category != "" {
			meta["category"] = v.Category
		}
		profiles[i] = tts.VoiceProfile{ID: v.VoiceID, Name: v.Name, Provider: providerName, Metadata: meta}
	}
	return profiles, nil
}

// do sends an authenticated request. Any status other than 200 is returned
// as a [*tts.StatusError] carrying the start of the response body.
func (p *Provider) do(ctx context.Context, method, path string, query url.Values, body []byte, accept string) (*http.Response, error) {
	u := p.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", accept)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return nil, &tts.StatusError{
		Provider:   providerName,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(snippet)),
	}
}
