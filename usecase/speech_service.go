package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/mhire/liveavatar/domain/entities"
	"github.com/mhire/liveavatar/domain/repositories"
	"github.com/mhire/liveavatar/internal/apperr"
	"github.com/mhire/liveavatar/internal/assets"
	"github.com/mhire/liveavatar/internal/ident"
	"github.com/mhire/liveavatar/internal/metrics"
)

const DefaultVoice = "alloy"

// SpeechOptions carries the model and timeout settings of the speech gateway
type SpeechOptions struct {
	STTModel string
	Language string
	Timeout  time.Duration
}

// SpeechService converts audio to text and text to audio files
type SpeechService struct {
	remote   repositories.SpeechToText
	fallback repositories.SpeechToText
	tts      repositories.TextToSpeech
	audio    *assets.Store
	metrics  *metrics.Metrics
	opts     SpeechOptions
	logger   *zap.Logger
}

// NewSpeechService creates a new speech service
func NewSpeechService(
	remote repositories.SpeechToText,
	fallback repositories.SpeechToText,
	tts repositories.TextToSpeech,
	audio *assets.Store,
	m *metrics.Metrics,
	opts SpeechOptions,
	logger *zap.Logger,
) *SpeechService {
	return &SpeechService{
		remote:   remote,
		fallback: fallback,
		tts:      tts,
		audio:    audio,
		metrics:  m,
		opts:     opts,
		logger:   logger,
	}
}

// Transcribe stores the audio under a request id, runs it through the remote
// provider when preferred and configured (else the fallback) and removes the
// temporary file before returning.
func (s *SpeechService) Transcribe(ctx context.Context, audio []byte, preferRemote bool) (*entities.Transcript, error) {
	if len(audio) == 0 {
		return nil, apperr.New(apperr.InvalidInput, "Audio file is empty")
	}

	requestID := ident.RequestID("transcribe")
	path, err := s.audio.Write(requestID+".wav", audio)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unexpected, err, "Failed to store audio")
	}
	defer func() {
		if err := s.audio.Remove(path); err != nil {
			s.logger.Warn("Failed to remove temporary audio", zap.String("path", path), zap.Error(err))
		}
	}()

	provider := s.fallback
	if preferRemote && s.remote != nil && s.remote.Available() {
		provider = s.remote
	}
	if provider == nil {
		return nil, apperr.New(apperr.Configuration, "No speech-to-text provider configured")
	}

	s.logger.Info("Transcribing audio",
		zap.String("requestID", requestID),
		zap.String("provider", provider.Name()),
		zap.Int("size", len(audio)))

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	text, err := provider.TranscribeFile(ctx, path, repositories.AudioConfig{
		Model:    s.opts.STTModel,
		Language: s.opts.Language,
	})
	s.metrics.ObserveSpeech("transcribe", provider.Name(), err)
	if err != nil {
		s.logger.Error("Transcription failed",
			zap.String("requestID", requestID),
			zap.String("provider", provider.Name()),
			zap.Error(err))
		if isDeadline(ctx, err) {
			return nil, apperr.Wrap(apperr.Timeout, err, "Transcription timed out")
		}
		return nil, apperr.Wrap(apperr.TranscriptionFailure, err, "Transcription failed")
	}

	return &entities.Transcript{Text: text, RequestID: requestID}, nil
}

// Synthesize converts text to an audio file in the audio directory
func (s *SpeechService) Synthesize(ctx context.Context, text, voice string) (*entities.SpeechArtifact, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.New(apperr.InvalidInput, "Text cannot be empty")
	}
	if voice == "" {
		voice = DefaultVoice
	}
	if s.tts == nil || !s.tts.Available() {
		return nil, apperr.New(apperr.Configuration, providerLabel(s.tts)+" API key not configured")
	}

	requestID := ident.RequestID("tts")
	s.logger.Info("Synthesizing speech",
		zap.String("requestID", requestID),
		zap.String("provider", s.tts.Name()),
		zap.String("voice", voice),
		zap.Int("textLength", len(text)))

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	audio, err := s.tts.SynthesizeAudio(ctx, text, repositories.VoiceConfig{Voice: voice})
	s.metrics.ObserveSpeech("synthesize", s.tts.Name(), err)
	if err != nil {
		s.logger.Error("Text-to-speech failed", zap.String("requestID", requestID), zap.Error(err))
		if isDeadline(ctx, err) {
			return nil, apperr.Wrap(apperr.Timeout, err, "Text-to-speech timed out")
		}
		return nil, apperr.Wrap(apperr.SynthesisFailure, err, "Text-to-speech failed")
	}

	path, err := s.audio.Write(requestID+"."+s.tts.Format(), audio)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unexpected, err, "Failed to store audio")
	}

	return &entities.SpeechArtifact{AudioPath: path, RequestID: requestID}, nil
}

// RemoveAudio deletes an audio file this service produced
func (s *SpeechService) RemoveAudio(path string) error {
	if !s.audio.Contains(path) {
		return apperr.New(apperr.InvalidInput, "Audio path is outside the audio directory")
	}
	return s.audio.Remove(path)
}

// StoreUpload keeps a client-supplied audio file so it can be rendered later
func (s *SpeechService) StoreUpload(data []byte) (*entities.UploadedAudio, error) {
	if len(data) == 0 {
		return nil, apperr.New(apperr.InvalidInput, "Audio file is empty")
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "audio/") {
		return nil, apperr.New(apperr.InvalidInput, "Unsupported audio type: "+mtype.String())
	}

	filename := ident.GenerateFilename("upload", strings.TrimPrefix(mtype.Extension(), "."))
	path, err := s.audio.Write(filename, data)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unexpected, err, "Failed to store audio")
	}

	s.logger.Info("Stored uploaded audio", zap.String("path", path), zap.String("mime", mtype.String()))
	return &entities.UploadedAudio{AudioPath: path, Filename: filename}, nil
}

func (s *SpeechService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.Timeout)
}

func providerLabel(tts repositories.TextToSpeech) string {
	if tts == nil {
		return "Text-to-speech"
	}
	switch tts.Name() {
	case "groq":
		return "Groq"
	case "elevenlabs":
		return "ElevenLabs"
	default:
		return tts.Name()
	}
}

func isDeadline(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}
