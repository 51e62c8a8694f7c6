package stt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mhire/liveavatar/adapters/groq"
	"github.com/mhire/liveavatar/domain"
	"github.com/mhire/liveavatar/domain/repositories"
)

func writeWav(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "REQ-test.wav")
	require.NoError(t, os.WriteFile(p, []byte("RIFF0000WAVEfmt "), 0o644))
	return p
}

func TestGroqSpeechToText_TranscribeFile(t *testing.T) {
	var gotModel, gotFile, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		gotModel = r.FormValue("model")
		gotAuth = r.Header.Get("Authorization")
		if _, header, err := r.FormFile("file"); assert.NoError(t, err) {
			gotFile = header.Filename
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": "hello there"})
	}))
	defer srv.Close()

	client := groq.NewClient("gsk-test", srv.URL, 5*time.Second)
	g := NewGroqSpeechToText(client, "gsk-test", "whisper-large-v3", zaptest.NewLogger(t))

	text, err := g.TranscribeFile(context.Background(), writeWav(t), repositories.AudioConfig{})
	require.NoError(t, err)

	assert.Equal(t, "hello there", text)
	assert.Equal(t, "whisper-large-v3", gotModel)
	assert.Equal(t, "Bearer gsk-test", gotAuth)
	assert.Equal(t, "REQ-test.wav", gotFile)
}

func TestGroqSpeechToText_RemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Invalid API Key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	client := groq.NewClient("bad", srv.URL, 5*time.Second)
	g := NewGroqSpeechToText(client, "bad", "whisper-large-v3", zaptest.NewLogger(t))

	_, err := g.TranscribeFile(context.Background(), writeWav(t), repositories.AudioConfig{})
	require.Error(t, err)

	var remote *domain.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusUnauthorized, remote.StatusCode)
	assert.Contains(t, remote.Body, "Invalid API Key")
}

func TestGroqSpeechToText_Available(t *testing.T) {
	logger := zaptest.NewLogger(t)
	assert.False(t, NewGroqSpeechToText(groq.NewClient("", "", time.Second), "", "m", logger).Available())
	assert.True(t, NewGroqSpeechToText(groq.NewClient("k", "", time.Second), "k", "m", logger).Available())
}

func TestIsoLanguage(t *testing.T) {
	assert.Equal(t, "en", isoLanguage("en-US"))
	assert.Equal(t, "id", isoLanguage("ID"))
	assert.Equal(t, "", isoLanguage(""))
}
