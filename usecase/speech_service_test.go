package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mhire/liveavatar/domain"
	"github.com/mhire/liveavatar/internal/apperr"
	"github.com/mhire/liveavatar/internal/assets"
	"github.com/mhire/liveavatar/internal/metrics"
)

type speechFixture struct {
	svc      *SpeechService
	remote   *fakeSTT
	fallback *fakeSTT
	tts      *fakeTTS
	metrics  *metrics.Metrics
	dir      string
}

func newSpeechFixture(t *testing.T) *speechFixture {
	t.Helper()
	dir := t.TempDir()
	logger := zaptest.NewLogger(t)

	f := &speechFixture{
		remote:   &fakeSTT{name: "groq", available: true, text: "hello from groq"},
		fallback: &fakeSTT{name: "local", available: true, text: "placeholder"},
		tts:      &fakeTTS{name: "groq", available: true, format: "mp3", audio: []byte("ID3audio")},
		metrics:  metrics.New(),
		dir:      dir,
	}
	f.svc = NewSpeechService(f.remote, f.fallback, f.tts, assets.NewStore(dir, logger), f.metrics,
		SpeechOptions{STTModel: "whisper-large-v3", Language: "en", Timeout: time.Second}, logger)
	return f
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestTranscribe_PrefersRemote(t *testing.T) {
	f := newSpeechFixture(t)

	transcript, err := f.svc.Transcribe(context.Background(), wavBytes, true)
	require.NoError(t, err)

	assert.Equal(t, "hello from groq", transcript.Text)
	assert.True(t, strings.HasPrefix(transcript.RequestID, "REQ-"))
	assert.Equal(t, 1, f.remote.calls)
	assert.Equal(t, 0, f.fallback.calls)
	assert.True(t, f.remote.sawFile)
	assert.Equal(t, transcript.RequestID+".wav", filepath.Base(f.remote.lastPath))
	assert.Equal(t, "whisper-large-v3", f.remote.config.Model)
	assert.Empty(t, dirEntries(t, f.dir), "temporary audio must be removed")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SpeechRequests.WithLabelValues("transcribe", "groq", "success")))
}

func TestTranscribe_Fallback(t *testing.T) {
	t.Run("not preferred", func(t *testing.T) {
		f := newSpeechFixture(t)
		transcript, err := f.svc.Transcribe(context.Background(), wavBytes, false)
		require.NoError(t, err)
		assert.Equal(t, "placeholder", transcript.Text)
		assert.Equal(t, 0, f.remote.calls)
	})

	t.Run("remote without key", func(t *testing.T) {
		f := newSpeechFixture(t)
		f.remote.available = false
		transcript, err := f.svc.Transcribe(context.Background(), wavBytes, true)
		require.NoError(t, err)
		assert.Equal(t, "placeholder", transcript.Text)
		assert.Equal(t, 1, f.fallback.calls)
	})
}

func TestTranscribe_RemoteFailure(t *testing.T) {
	f := newSpeechFixture(t)
	f.remote.err = &domain.RemoteError{Provider: "groq", StatusCode: 500, Body: "upstream down"}

	_, err := f.svc.Transcribe(context.Background(), wavBytes, true)

	require.Error(t, err)
	assert.Equal(t, apperr.TranscriptionFailure, apperr.KindOf(err))
	assert.True(t, strings.HasPrefix(err.Error(), "Transcription failed: "))
	assert.Equal(t, 0, f.fallback.calls, "remote failure does not fall back")
	assert.Empty(t, dirEntries(t, f.dir))
}

func TestTranscribe_Empty(t *testing.T) {
	f := newSpeechFixture(t)
	_, err := f.svc.Transcribe(context.Background(), nil, true)
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
}

func TestSynthesize(t *testing.T) {
	f := newSpeechFixture(t)

	artifact, err := f.svc.Synthesize(context.Background(), "hello", "")
	require.NoError(t, err)

	assert.Equal(t, "alloy", f.tts.voice)
	assert.Equal(t, f.dir, filepath.Dir(artifact.AudioPath))
	assert.Equal(t, artifact.RequestID+".mp3", filepath.Base(artifact.AudioPath))

	data, err := os.ReadFile(artifact.AudioPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3audio"), data)
}

func TestSynthesize_Errors(t *testing.T) {
	t.Run("empty text", func(t *testing.T) {
		f := newSpeechFixture(t)
		_, err := f.svc.Synthesize(context.Background(), "  ", "alloy")
		assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
	})

	t.Run("missing key", func(t *testing.T) {
		f := newSpeechFixture(t)
		f.tts.available = false
		_, err := f.svc.Synthesize(context.Background(), "hello", "alloy")
		assert.Equal(t, apperr.Configuration, apperr.KindOf(err))
		assert.EqualError(t, err, "Groq API key not configured")
	})

	t.Run("remote rejects", func(t *testing.T) {
		f := newSpeechFixture(t)
		f.tts.err = &domain.RemoteError{Provider: "groq", StatusCode: 400, Body: "bad voice"}
		_, err := f.svc.Synthesize(context.Background(), "hello", "nobody")

		assert.Equal(t, apperr.SynthesisFailure, apperr.KindOf(err))
		var remote *domain.RemoteError
		require.True(t, errors.As(err, &remote))
		assert.Equal(t, 400, remote.StatusCode)
		assert.Contains(t, err.Error(), "bad voice")
		assert.Empty(t, dirEntries(t, f.dir))
	})

	t.Run("deadline", func(t *testing.T) {
		f := newSpeechFixture(t)
		f.tts.err = context.DeadlineExceeded
		_, err := f.svc.Synthesize(context.Background(), "hello", "alloy")
		assert.Equal(t, apperr.Timeout, apperr.KindOf(err))
	})
}

func TestRemoveAudio(t *testing.T) {
	f := newSpeechFixture(t)
	artifact, err := f.svc.Synthesize(context.Background(), "hello", "alloy")
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveAudio(artifact.AudioPath))
	assert.NoFileExists(t, artifact.AudioPath)
	assert.NoError(t, f.svc.RemoveAudio(artifact.AudioPath), "second removal is a no-op")

	outside := filepath.Join(t.TempDir(), "keep.mp3")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(f.svc.RemoveAudio(outside)))
	assert.FileExists(t, outside)
}

func TestStoreUpload(t *testing.T) {
	f := newSpeechFixture(t)

	upload, err := f.svc.StoreUpload(wavBytes)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(upload.Filename, "upload_"))
	assert.True(t, strings.HasSuffix(upload.Filename, ".wav"))
	assert.FileExists(t, upload.AudioPath)

	_, err = f.svc.StoreUpload(pngBytes)
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
}
