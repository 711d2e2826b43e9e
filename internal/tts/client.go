// Package tts talks to the remote speech-synthesis service.
package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultEndpoint = "https://api.elevenlabs.io/v1"
	DefaultModelID  = "eleven_monolingual_v1"

	// DefaultVoice is Rachel - calm, natural female.
	DefaultVoice = "21m00Tcm4TlvDq8ikWAM"

	// PCM output keeps the decode path trivial and the analyzer fed with
	// raw samples.
	outputFormat = "pcm_16000"
)

var (
	ErrUnavailable = errors.New("synthesis service unavailable")
	ErrEmptyText   = errors.New("empty synthesis text")
)

// VoiceSettings is the per-request voice_settings payload.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

// Request is one synthesis call.
type Request struct {
	Text     string
	VoiceID  string
	Settings VoiceSettings
}

// Client is the ElevenLabs HTTP client.
type Client struct {
	apiKey  string
	baseURL string
	modelID string
	client  *http.Client
	logger  zerolog.Logger
}

// Config carries client construction parameters.
type Config struct {
	APIKey  string
	BaseURL string
	ModelID string
	Timeout time.Duration
}

// NewClient builds a synthesis client; the API key falls back to the
// ELEVENLABS_API_KEY environment variable.
func NewClient(logger zerolog.Logger, cfg Config) *Client {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultEndpoint
	}
	modelID := cfg.ModelID
	if modelID == "" {
		modelID = DefaultModelID
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		modelID: modelID,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "tts").Logger(),
	}
}

func (c *Client) IsAvailable() bool {
	return c.apiKey != ""
}

var voiceAliases = map[string]string{
	"nova":    "21m00Tcm4TlvDq8ikWAM", // Rachel
	"shimmer": "EXAVITQu4vr4xnSDxMaL", // Bella
	"alloy":   "MF3mGyEYCl7XYWbV9V6O", // Emily
	"echo":    "VR6AewLTigWG4xSOukaG", // Arnold
	"onyx":    "ErXwobaYiN019PkySvjV", // Antoni
	"fable":   "TxGEqnHWrfWFTfGW9XjX", // Josh
}

func (c *Client) resolveVoice(id string) string {
	if id == "" {
		return DefaultVoice
	}
	if mapped, ok := voiceAliases[id]; ok {
		return mapped
	}
	return id
}

func (c *Client) buildPayload(req Request) ([]byte, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}
	payload := map[string]any{
		"text":           req.Text,
		"model_id":       c.modelID,
		"voice_settings": req.Settings,
	}
	return json.Marshal(payload)
}

// Stream opens a streaming synthesis request and returns the encoded audio
// byte stream. The caller owns the reader and must close it.
func (c *Client) Stream(ctx context.Context, req Request) (io.ReadCloser, error) {
	if !c.IsAvailable() {
		return nil, ErrUnavailable
	}

	body, err := c.buildPayload(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s",
		c.baseURL, c.resolveVoice(req.VoiceID), outputFormat)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("stream request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("synthesis error %d: %s", resp.StatusCode, string(detail))
	}

	c.logger.Debug().
		Str("voice", c.resolveVoice(req.VoiceID)).
		Int("textLen", len(req.Text)).
		Msg("synthesis stream opened")

	return resp.Body, nil
}

// Synthesize is the non-streaming fallback: one request, one base64 audio
// payload, returned decoded.
func (c *Client) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if !c.IsAvailable() {
		return nil, ErrUnavailable
	}

	body, err := c.buildPayload(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	url := fmt.Sprintf("%s/text-to-speech/%s/with-timestamps?output_format=%s",
		c.baseURL, c.resolveVoice(req.VoiceID), outputFormat)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("synthesis error %d: %s", resp.StatusCode, string(detail))
	}

	var parsed struct {
		AudioBase64 string `json:"audio_base64"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	audio, err := base64.StdEncoding.DecodeString(parsed.AudioBase64)
	if err != nil {
		return nil, fmt.Errorf("decode audio payload: %w", err)
	}

	c.logger.Info().
		Int("audioBytes", len(audio)).
		Dur("elapsed", time.Since(start)).
		Msg("synthesis complete")

	return audio, nil
}
