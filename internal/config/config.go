// Package config builds the process-wide configuration once at startup.
// The resulting *Config is passed explicitly to every constructor.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	TTSProviderGroq       = "groq"
	TTSProviderElevenLabs = "elevenlabs"

	STTFallbackLocal  = "local"
	STTFallbackGoogle = "google"
)

// Options controls where Load looks for configuration.
type Options struct {
	// ConfigFile is an optional YAML/JSON/TOML file.
	ConfigFile string
	// EnvFile is loaded into the process environment before reading keys.
	// Defaults to ".env"; a missing file is ignored.
	EnvFile string
}

type Config struct {
	Port   int
	AppEnv string
	// LogLevel is a zap level name.
	LogLevel string

	APIVersion       string
	APIUniformErrors bool

	Groq    GroqConfig
	Speech  SpeechConfig
	Eleven  ElevenLabsConfig
	Gemini  GeminiConfig
	Render  RenderConfig
	Assets  AssetsConfig
	Janitor JanitorConfig
}

type GroqConfig struct {
	APIKey    string
	BaseURL   string
	TTSModel  string
	STTModel  string
	TTSFormat string
}

type SpeechConfig struct {
	Timeout          time.Duration
	TTSProvider      string
	STTFallback      string
	LocalEncoderPath string
	LocalDecoderPath string
	GoogleLanguage   string
}

type ElevenLabsConfig struct {
	APIKey  string
	VoiceID string
	ModelID string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type RenderConfig struct {
	SadTalkerPath string
	Python        string
	Timeout       time.Duration
	Concurrency   int
	Enhancer      string
	Size          int
	Preprocess    string
	Still         bool
}

type AssetsConfig struct {
	AudioPath string
	VideoPath string
}

type JanitorConfig struct {
	Schedule string
	MaxAge   time.Duration
}

// APIPrefix is the route prefix for versioned endpoints, e.g. "/api/v1".
func (c *Config) APIPrefix() string {
	return "/api/" + c.APIVersion
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func defaults(v *viper.Viper) {
	v.SetDefault("port", 8000)
	v.SetDefault("app_env", "production")
	v.SetDefault("log_level", "info")
	v.SetDefault("api_version", "v1")
	v.SetDefault("api_uniform_errors", false)

	v.SetDefault("groq_api_key", "")
	v.SetDefault("groq_base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("groq_tts_model", "playai-tts")
	v.SetDefault("groq_stt_model", "whisper-large-v3")
	v.SetDefault("groq_tts_format", "mp3")

	v.SetDefault("speech_timeout", 60*time.Second)
	v.SetDefault("tts_provider", TTSProviderGroq)
	v.SetDefault("stt_fallback", STTFallbackLocal)
	v.SetDefault("local_stt_encoder_path", "")
	v.SetDefault("local_stt_decoder_path", "")
	v.SetDefault("google_stt_language", "en-US")

	v.SetDefault("eleven_labs_api_key", "")
	v.SetDefault("eleven_labs_voice_id", "")
	v.SetDefault("eleven_labs_model_id", "")

	v.SetDefault("gemini_api_key", "")
	v.SetDefault("gemini_model", "gemini-2.0-flash")

	v.SetDefault("audio_assets_path", "./assets/audio")
	v.SetDefault("video_assets_path", "./assets/video")
	v.SetDefault("sadtalker_path", "./assets/video/SadTalker")
	v.SetDefault("sadtalker_python", "python")
	v.SetDefault("render_timeout", 10*time.Minute)
	v.SetDefault("render_concurrency", 2)
	v.SetDefault("render_enhancer", "gfpgan")
	v.SetDefault("render_size", 256)
	v.SetDefault("render_preprocess", "full")
	v.SetDefault("render_still", true)

	v.SetDefault("janitor_schedule", "@every 15m")
	v.SetDefault("janitor_max_age", time.Hour)
}

// Load reads defaults, an optional config file, the env file and the process
// environment, in increasing order of precedence.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	v := viper.New()
	defaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	audioPath := v.GetString("audio_assets_path")

	cfg := &Config{
		Port:             v.GetInt("port"),
		AppEnv:           strings.ToLower(v.GetString("app_env")),
		LogLevel:         v.GetString("log_level"),
		APIVersion:       strings.Trim(v.GetString("api_version"), "/"),
		APIUniformErrors: v.GetBool("api_uniform_errors"),
		Groq: GroqConfig{
			APIKey:    v.GetString("groq_api_key"),
			BaseURL:   v.GetString("groq_base_url"),
			TTSModel:  v.GetString("groq_tts_model"),
			STTModel:  v.GetString("groq_stt_model"),
			TTSFormat: v.GetString("groq_tts_format"),
		},
		Speech: SpeechConfig{
			Timeout:          v.GetDuration("speech_timeout"),
			TTSProvider:      strings.ToLower(v.GetString("tts_provider")),
			STTFallback:      strings.ToLower(v.GetString("stt_fallback")),
			LocalEncoderPath: v.GetString("local_stt_encoder_path"),
			LocalDecoderPath: v.GetString("local_stt_decoder_path"),
			GoogleLanguage:   v.GetString("google_stt_language"),
		},
		Eleven: ElevenLabsConfig{
			APIKey:  v.GetString("eleven_labs_api_key"),
			VoiceID: v.GetString("eleven_labs_voice_id"),
			ModelID: v.GetString("eleven_labs_model_id"),
		},
		Gemini: GeminiConfig{
			APIKey: v.GetString("gemini_api_key"),
			Model:  v.GetString("gemini_model"),
		},
		Render: RenderConfig{
			SadTalkerPath: v.GetString("sadtalker_path"),
			Python:        v.GetString("sadtalker_python"),
			Timeout:       v.GetDuration("render_timeout"),
			Concurrency:   v.GetInt("render_concurrency"),
			Enhancer:      v.GetString("render_enhancer"),
			Size:          v.GetInt("render_size"),
			Preprocess:    v.GetString("render_preprocess"),
			Still:         v.GetBool("render_still"),
		},
		Assets: AssetsConfig{
			AudioPath: audioPath,
			VideoPath: v.GetString("video_assets_path"),
		},
		Janitor: JanitorConfig{
			Schedule: v.GetString("janitor_schedule"),
			MaxAge:   v.GetDuration("janitor_max_age"),
		},
	}

	if cfg.Speech.LocalEncoderPath == "" {
		cfg.Speech.LocalEncoderPath = filepath.Join(audioPath, "silero_encoder_v5.onnx")
	}
	if cfg.Speech.LocalDecoderPath == "" {
		cfg.Speech.LocalDecoderPath = filepath.Join(audioPath, "silero_decoder_v5.onnx")
	}
	return cfg
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.APIVersion == "" {
		return errors.New("api version must not be empty")
	}
	if c.Render.Concurrency <= 0 {
		return fmt.Errorf("render concurrency must be positive, got %d", c.Render.Concurrency)
	}
	if c.Render.Timeout <= 0 {
		return fmt.Errorf("render timeout must be positive, got %s", c.Render.Timeout)
	}
	if c.Speech.Timeout <= 0 {
		return fmt.Errorf("speech timeout must be positive, got %s", c.Speech.Timeout)
	}
	switch c.Speech.TTSProvider {
	case TTSProviderGroq, TTSProviderElevenLabs:
	default:
		return fmt.Errorf("unknown tts provider %q", c.Speech.TTSProvider)
	}
	switch c.Speech.STTFallback {
	case STTFallbackLocal, STTFallbackGoogle:
	default:
		return fmt.Errorf("unknown stt fallback %q", c.Speech.STTFallback)
	}
	if c.Assets.AudioPath == "" || c.Assets.VideoPath == "" {
		return errors.New("asset paths must not be empty")
	}
	return nil
}
