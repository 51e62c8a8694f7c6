package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mhire/liveavatar/adapters/groq"
	"github.com/mhire/liveavatar/domain"
	"github.com/mhire/liveavatar/domain/repositories"
)

func TestGroqTextToSpeech_SynthesizeAudio(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3-fake-mp3"))
	}))
	defer srv.Close()

	g := NewGroqTextToSpeech(groq.NewClient("gsk", srv.URL, 5*time.Second), "gsk", "playai-tts", "", zaptest.NewLogger(t))

	audio, err := g.SynthesizeAudio(context.Background(), "hello", repositories.VoiceConfig{Voice: "nova"})
	require.NoError(t, err)

	assert.Equal(t, []byte("ID3-fake-mp3"), audio)
	assert.Equal(t, "mp3", g.Format())
	assert.Equal(t, "playai-tts", body["model"])
	assert.Equal(t, "hello", body["input"])
	assert.Equal(t, "nova", body["voice"])
}

func TestGroqTextToSpeech_DefaultVoice(t *testing.T) {
	var voice string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		voice, _ = body["voice"].(string)
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	g := NewGroqTextToSpeech(groq.NewClient("gsk", srv.URL, 5*time.Second), "gsk", "playai-tts", "mp3", zaptest.NewLogger(t))

	_, err := g.SynthesizeAudio(context.Background(), "hi", repositories.VoiceConfig{})
	require.NoError(t, err)
	assert.Equal(t, "alloy", voice)
}

func TestGroqTextToSpeech_RemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"model not found","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	g := NewGroqTextToSpeech(groq.NewClient("gsk", srv.URL, 5*time.Second), "gsk", "nope", "mp3", zaptest.NewLogger(t))

	_, err := g.SynthesizeAudio(context.Background(), "hello", repositories.VoiceConfig{})
	require.Error(t, err)

	var remote *domain.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusBadRequest, remote.StatusCode)
	assert.Equal(t, "model not found", remote.Body)
}

func TestGroqTextToSpeech_EmptyText(t *testing.T) {
	g := NewGroqTextToSpeech(groq.NewClient("gsk", "http://127.0.0.1:0", time.Second), "gsk", "m", "mp3", zaptest.NewLogger(t))

	_, err := g.SynthesizeAudio(context.Background(), "   ", repositories.VoiceConfig{})
	assert.Error(t, err)
}
