package tts

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mhire/liveavatar/adapters/groq"
	"github.com/mhire/liveavatar/domain/repositories"
)

const defaultGroqVoice = "alloy"

// GroqTextToSpeech implements TextToSpeech against Groq's /audio/speech
type GroqTextToSpeech struct {
	client *openai.Client
	apiKey string
	model  string
	format string
	logger *zap.Logger
}

var _ repositories.TextToSpeech = (*GroqTextToSpeech)(nil)

func NewGroqTextToSpeech(client *openai.Client, apiKey, model, format string, logger *zap.Logger) *GroqTextToSpeech {
	if format == "" {
		format = "mp3"
	}
	return &GroqTextToSpeech{
		client: client,
		apiKey: apiKey,
		model:  model,
		format: format,
		logger: logger.With(zap.String("provider", "groq-tts")),
	}
}

func (g *GroqTextToSpeech) Name() string { return "groq" }

func (g *GroqTextToSpeech) Available() bool { return g.apiKey != "" }

func (g *GroqTextToSpeech) Format() string { return g.format }

// SynthesizeAudio posts {model, input, voice} and returns the raw audio bytes
func (g *GroqTextToSpeech) SynthesizeAudio(ctx context.Context, text string, config repositories.VoiceConfig) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	voice := config.Voice
	if voice == "" {
		voice = defaultGroqVoice
	}
	model := config.Model
	if model == "" {
		model = g.model
	}

	g.logger.Info("Converting text to speech",
		zap.Int("textLength", len(text)),
		zap.String("voice", voice),
		zap.String("model", model))

	resp, err := g.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormat(g.format),
	})
	if err != nil {
		return nil, fmt.Errorf("groq speech: %w", groq.TranslateError(err))
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("groq speech: empty audio response")
	}

	return audio, nil
}
