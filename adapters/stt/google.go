package stt

import (
	"context"
	"fmt"
	"os"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/mhire/liveavatar/domain/repositories"
)

// GoogleSpeechToText implements SpeechToText for Google Cloud.
// Credentials come from the environment (Application Default Credentials).
type GoogleSpeechToText struct {
	language string
	logger   *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

func NewGoogleSpeechToText(language string, logger *zap.Logger) *GoogleSpeechToText {
	if language == "" {
		language = "en-US"
	}
	return &GoogleSpeechToText{
		language: language,
		logger:   logger.With(zap.String("provider", "google-stt")),
	}
}

func (g *GoogleSpeechToText) Name() string { return "google" }

func (g *GoogleSpeechToText) Available() bool { return true }

// TranscribeFile runs a synchronous Recognize call over the whole file
func (g *GoogleSpeechToText) TranscribeFile(ctx context.Context, path string, config repositories.AudioConfig) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read audio file: %w", err)
	}

	encodingName := config.Encoding
	if encodingName == "" {
		encodingName = detectEncoding(data)
	}
	encoding, err := getAudioEncoding(encodingName)
	if err != nil {
		return "", err
	}

	language := config.Language
	if language == "" {
		language = g.language
	}

	client, err := speech.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create speech client: %w", err)
	}
	defer client.Close()

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        encoding,
			SampleRateHertz: int32(config.SampleRate),
			LanguageCode:    language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: data},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to recognize audio: %w", err)
	}

	text := joinTranscripts(resp.GetResults())
	g.logger.Debug("Recognized audio", zap.Int("results", len(resp.GetResults())), zap.String("encoding", encodingName))
	return text, nil
}

func joinTranscripts(results []*speechpb.SpeechRecognitionResult) string {
	parts := make([]string, 0, len(results))
	for _, result := range results {
		alternatives := result.GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		// Take the best alternative
		if t := strings.TrimSpace(alternatives[0].GetTranscript()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// detectEncoding sniffs the container and maps it to an encoding name
// understood by getAudioEncoding. Unknown containers map to "".
func detectEncoding(data []byte) string {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		switch {
		case m.Is("audio/wav"):
			return "LINEAR16"
		case m.Is("audio/flac"):
			return "FLAC"
		case m.Is("audio/ogg"):
			return "OGG_OPUS"
		case m.Is("audio/webm"), m.Is("video/webm"):
			return "WEBM_OPUS"
		case m.Is("audio/amr"):
			return "AMR"
		}
	}
	return ""
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch strings.ToUpper(encoding) {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "AMR":
		return speechpb.RecognitionConfig_AMR, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %q", encoding)
	}
}
