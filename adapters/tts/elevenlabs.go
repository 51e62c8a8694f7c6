package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mhire/liveavatar/domain"
	"github.com/mhire/liveavatar/domain/repositories"
)

const (
	defaultAPIBaseURL   = "https://api.elevenlabs.io/v1"
	defaultVoiceID      = "21m00Tcm4TlvDq8ikWAM" // Rachel
	defaultOutputFormat = "mp3_44100_128"
	defaultModelID      = "eleven_multilingual_v2"
	defaultStability    = 0.5
	defaultClarity      = 0.75
	defaultHTTPTimeout  = 60 * time.Second
	maxErrorBody        = 4 << 10
)

// ElevenLabsConfig configures ElevenLabsTTS. Only APIKey is required.
type ElevenLabsConfig struct {
	APIKey       string
	APIBaseURL   string
	VoiceID      string
	ModelID      string
	OutputFormat string
	Stability    float64 // 0..1
	Clarity      float64 // similarity boost, 0..1
	Timeout      time.Duration
}

func (c ElevenLabsConfig) validate() error {
	if c.APIKey == "" {
		return errors.New("eleven labs API key is required")
	}
	if c.Stability < 0 || c.Stability > 1 {
		return fmt.Errorf("stability must be between 0 and 1, got %f", c.Stability)
	}
	if c.Clarity < 0 || c.Clarity > 1 {
		return fmt.Errorf("clarity must be between 0 and 1, got %f", c.Clarity)
	}
	return nil
}

// ElevenLabsTTS is the alternate speech synthesizer, selected with
// TTS_PROVIDER=elevenlabs.
type ElevenLabsTTS struct {
	cfg    ElevenLabsConfig
	client *http.Client
	logger *zap.Logger
}

var _ repositories.TextToSpeech = (*ElevenLabsTTS)(nil)

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

type synthesisRequest struct {
	Text                   string        `json:"text"`
	ModelID                string        `json:"model_id"`
	VoiceSettings          voiceSettings `json:"voice_settings"`
	ApplyTextNormalization string        `json:"apply_text_normalization,omitempty"`
}

func NewElevenLabsTTS(cfg ElevenLabsConfig, logger *zap.Logger) (*ElevenLabsTTS, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	setDefault(&cfg.APIBaseURL, defaultAPIBaseURL)
	setDefault(&cfg.VoiceID, defaultVoiceID)
	setDefault(&cfg.ModelID, defaultModelID)
	setDefault(&cfg.OutputFormat, defaultOutputFormat)
	if cfg.Stability == 0 {
		cfg.Stability = defaultStability
	}
	if cfg.Clarity == 0 {
		cfg.Clarity = defaultClarity
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}

	e := &ElevenLabsTTS{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("provider", "elevenlabs")),
	}
	e.logger.Info("Eleven Labs TTS configured",
		zap.String("voiceID", cfg.VoiceID),
		zap.String("modelID", cfg.ModelID),
		zap.String("outputFormat", cfg.OutputFormat))
	return e, nil
}

func setDefault(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func (e *ElevenLabsTTS) Name() string { return "elevenlabs" }

func (e *ElevenLabsTTS) Available() bool { return e.cfg.APIKey != "" }

// Format is the codec part of the output format: "mp3_44100_128" -> "mp3".
func (e *ElevenLabsTTS) Format() string {
	codec, _, _ := strings.Cut(e.cfg.OutputFormat, "_")
	return codec
}

// SynthesizeAudio renders text with the configured voice, or with
// voice.Voice when that is an Eleven Labs voice id.
func (e *ElevenLabsTTS) SynthesizeAudio(ctx context.Context, text string, voice repositories.VoiceConfig) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text cannot be empty")
	}

	voiceID := e.cfg.VoiceID
	if voice.Voice != "" && !isOpenAIVoice(voice.Voice) {
		voiceID = voice.Voice
	}

	req, err := e.newRequest(ctx, voiceID, text)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Sending request to Eleven Labs API", zap.String("voiceID", voiceID))
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		e.logger.Error("Eleven Labs API returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(body)))
		return nil, &domain.RemoteError{Provider: "elevenlabs", StatusCode: resp.StatusCode, Body: string(body)}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	e.logger.Info("Received audio from Eleven Labs API", zap.Int("totalBytes", len(audio)))
	return audio, nil
}

func (e *ElevenLabsTTS) newRequest(ctx context.Context, voiceID, text string) (*http.Request, error) {
	body, err := json.Marshal(synthesisRequest{
		Text:                   text,
		ModelID:                e.cfg.ModelID,
		ApplyTextNormalization: "auto",
		VoiceSettings: voiceSettings{
			Stability:       e.cfg.Stability,
			SimilarityBoost: e.cfg.Clarity,
			UseSpeakerBoost: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	q := url.Values{"output_format": {e.cfg.OutputFormat}, "enable_logging": {"false"}}
	endpoint := e.cfg.APIBaseURL + "/text-to-speech/" + url.PathEscape(voiceID) + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	accept := "audio/mpeg"
	if strings.HasPrefix(e.cfg.OutputFormat, "pcm") {
		accept = "audio/pcm"
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.cfg.APIKey)
	return req, nil
}

// isOpenAIVoice reports whether voice is one of the OpenAI-style names the
// HTTP surface defaults to. Those are not Eleven Labs voice ids.
func isOpenAIVoice(voice string) bool {
	switch voice {
	case "alloy", "echo", "fable", "onyx", "nova", "shimmer":
		return true
	}
	return false
}
