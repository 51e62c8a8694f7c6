package stt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/mhire/liveavatar/domain/repositories"
)

// LocalPlaceholderText is returned by the local provider in place of a real
// transcript. On-device inference is not implemented.
const LocalPlaceholderText = "Silero transcription not fully implemented"

var ErrLocalModelsMissing = errors.New("failed to initialize Silero models")

// LocalSpeechToText stands in for an on-device model. It only checks that
// the model files are present and returns LocalPlaceholderText.
type LocalSpeechToText struct {
	encoderPath string
	decoderPath string
	logger      *zap.Logger

	mu          sync.Mutex
	initialized bool
}

var _ repositories.SpeechToText = (*LocalSpeechToText)(nil)

func NewLocalSpeechToText(encoderPath, decoderPath string, logger *zap.Logger) *LocalSpeechToText {
	return &LocalSpeechToText{
		encoderPath: encoderPath,
		decoderPath: decoderPath,
		logger:      logger.With(zap.String("provider", "local-stt")),
	}
}

func (l *LocalSpeechToText) Name() string { return "local" }

func (l *LocalSpeechToText) Available() bool { return true }

// init verifies the model files once. A failed check is retried on the next call.
func (l *LocalSpeechToText) init() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return nil
	}
	for _, p := range []string{l.encoderPath, l.decoderPath} {
		if _, err := os.Stat(p); err != nil {
			l.logger.Error("Local model file unavailable", zap.String("path", p), zap.Error(err))
			return fmt.Errorf("%w: %s", ErrLocalModelsMissing, p)
		}
	}
	l.initialized = true
	l.logger.Info("Local models found",
		zap.String("encoder", l.encoderPath),
		zap.String("decoder", l.decoderPath))
	return nil
}

func (l *LocalSpeechToText) TranscribeFile(ctx context.Context, path string, config repositories.AudioConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := l.init(); err != nil {
		return "", err
	}
	l.logger.Warn("Local transcription is a placeholder", zap.String("path", path))
	return LocalPlaceholderText, nil
}
