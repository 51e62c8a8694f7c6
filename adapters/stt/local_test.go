package stt

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mhire/liveavatar/domain/repositories"
)

func TestLocalSpeechToText(t *testing.T) {
	dir := t.TempDir()
	encoder := filepath.Join(dir, "silero_encoder_v5.onnx")
	decoder := filepath.Join(dir, "silero_decoder_v5.onnx")
	l := NewLocalSpeechToText(encoder, decoder, zaptest.NewLogger(t))

	_, err := l.TranscribeFile(context.Background(), "ignored.wav", repositories.AudioConfig{})
	require.ErrorIs(t, err, ErrLocalModelsMissing)

	// models appearing later are picked up on the next call
	require.NoError(t, os.WriteFile(encoder, []byte("onnx"), 0o644))
	require.NoError(t, os.WriteFile(decoder, []byte("onnx"), 0o644))

	text, err := l.TranscribeFile(context.Background(), "ignored.wav", repositories.AudioConfig{})
	require.NoError(t, err)
	assert.Equal(t, LocalPlaceholderText, text)
}

func TestLocalSpeechToText_Canceled(t *testing.T) {
	l := NewLocalSpeechToText("a", "b", zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.TranscribeFile(ctx, "x.wav", repositories.AudioConfig{})
	assert.ErrorIs(t, err, context.Canceled)
}
