package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *Client {
	return NewClient(zerolog.Nop(), Config{
		APIKey:  "test-key",
		BaseURL: serverURL,
	})
}

func TestStream_RequestShape(t *testing.T) {
	var gotPath, gotKey, gotFormat string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		gotFormat = r.URL.Query().Get("output_format")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte("audio-bytes"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	stream, err := c.Stream(context.Background(), Request{
		Text:    "hello world",
		VoiceID: "nova",
		Settings: VoiceSettings{
			Stability:       0.4,
			SimilarityBoost: 0.8,
			Style:           0.3,
			UseSpeakerBoost: true,
		},
	})
	require.NoError(t, err)
	defer stream.Close()

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.Equal(t, "audio-bytes", string(data))

	// Voice alias resolves to its service id.
	require.Equal(t, "/text-to-speech/21m00Tcm4TlvDq8ikWAM/stream", gotPath)
	require.Equal(t, "test-key", gotKey)
	require.Equal(t, "pcm_16000", gotFormat)

	require.Equal(t, "hello world", gotBody["text"])
	require.Equal(t, DefaultModelID, gotBody["model_id"])

	settings, ok := gotBody["voice_settings"].(map[string]any)
	require.True(t, ok, "voice_settings missing")
	require.InDelta(t, 0.4, settings["stability"], 1e-9)
	require.InDelta(t, 0.8, settings["similarity_boost"], 1e-9)
	require.InDelta(t, 0.3, settings["style"], 1e-9)
	require.Equal(t, true, settings["use_speaker_boost"])
}

func TestStream_ErrorStatusSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"invalid key"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Stream(context.Background(), Request{Text: "hi"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
}

func TestStream_NoAPIKey(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "")
	c := NewClient(zerolog.Nop(), Config{})
	_, err := c.Stream(context.Background(), Request{Text: "hi"})
	require.True(t, errors.Is(err, ErrUnavailable))
}

func TestStream_EmptyText(t *testing.T) {
	c := newTestClient("http://unused")
	_, err := c.Stream(context.Background(), Request{})
	require.True(t, errors.Is(err, ErrEmptyText))
}

func TestSynthesize_DecodesBase64Payload(t *testing.T) {
	audio := []byte{0x01, 0x02, 0x03, 0x04}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/with-timestamps"))
		json.NewEncoder(w).Encode(map[string]string{
			"audio_base64": base64.StdEncoding.EncodeToString(audio),
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	got, err := c.Synthesize(context.Background(), Request{Text: "hi", VoiceID: "custom-voice-id"})
	require.NoError(t, err)
	require.Equal(t, audio, got)
}

func TestResolveVoice(t *testing.T) {
	c := newTestClient("http://unused")
	tests := []struct {
		in   string
		want string
	}{
		{"", DefaultVoice},
		{"nova", "21m00Tcm4TlvDq8ikWAM"},
		{"onyx", "ErXwobaYiN019PkySvjV"},
		{"custom-raw-id", "custom-raw-id"},
	}
	for _, tt := range tests {
		if got := c.resolveVoice(tt.in); got != tt.want {
			t.Errorf("resolveVoice(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
