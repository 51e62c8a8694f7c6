package stt

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mhire/liveavatar/adapters/groq"
	"github.com/mhire/liveavatar/domain/repositories"
)

// GroqSpeechToText implements SpeechToText against Groq's hosted Whisper
type GroqSpeechToText struct {
	client *openai.Client
	apiKey string
	model  string
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*GroqSpeechToText)(nil)

func NewGroqSpeechToText(client *openai.Client, apiKey, model string, logger *zap.Logger) *GroqSpeechToText {
	return &GroqSpeechToText{
		client: client,
		apiKey: apiKey,
		model:  model,
		logger: logger.With(zap.String("provider", "groq-stt")),
	}
}

func (g *GroqSpeechToText) Name() string { return "groq" }

func (g *GroqSpeechToText) Available() bool { return g.apiKey != "" }

// TranscribeFile uploads the file at path as multipart form data
func (g *GroqSpeechToText) TranscribeFile(ctx context.Context, path string, config repositories.AudioConfig) (string, error) {
	model := config.Model
	if model == "" {
		model = g.model
	}

	g.logger.Debug("Submitting transcription", zap.String("path", path), zap.String("model", model))

	resp, err := g.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		FilePath: path,
		Language: isoLanguage(config.Language),
	})
	if err != nil {
		return "", fmt.Errorf("groq transcription: %w", groq.TranslateError(err))
	}

	return resp.Text, nil
}

// isoLanguage reduces a BCP-47 tag such as "en-US" to the ISO-639-1 code
// Whisper accepts.
func isoLanguage(tag string) string {
	lang, _, _ := strings.Cut(tag, "-")
	return strings.ToLower(lang)
}
