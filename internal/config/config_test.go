package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnvFile(t *testing.T) Options {
	return Options{EnvFile: filepath.Join(t.TempDir(), "missing.env")}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "v1", cfg.APIVersion)
	assert.Equal(t, "/api/v1", cfg.APIPrefix())
	assert.False(t, cfg.APIUniformErrors)
	assert.Equal(t, "whisper-large-v3", cfg.Groq.STTModel)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.Groq.BaseURL)
	assert.Equal(t, 2, cfg.Render.Concurrency)
	assert.Equal(t, 10*time.Minute, cfg.Render.Timeout)
	assert.Equal(t, filepath.Join("./assets/audio", "silero_encoder_v5.onnx"), cfg.Speech.LocalEncoderPath)
	assert.Equal(t, STTFallbackLocal, cfg.Speech.STTFallback)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("API_VERSION", "v2")
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("RENDER_TIMEOUT", "30s")
	t.Setenv("RENDER_CONCURRENCY", "4")
	t.Setenv("AUDIO_ASSETS_PATH", "/srv/audio")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "/api/v2", cfg.APIPrefix())
	assert.Equal(t, "gsk-test", cfg.Groq.APIKey)
	assert.Equal(t, 30*time.Second, cfg.Render.Timeout)
	assert.Equal(t, 4, cfg.Render.Concurrency)
	assert.Equal(t, "/srv/audio/silero_decoder_v5.onnx", cfg.Speech.LocalDecoderPath)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("GEMINI_MODEL=gemini-test\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("GEMINI_MODEL") })

	cfg, err := Load(Options{EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "gemini-test", cfg.Gemini.Model)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "liveavatar.yaml")
	require.NoError(t, os.WriteFile(file, []byte("port: 9001\nvideo_assets_path: /tmp/videos\n"), 0o644))

	cfg, err := Load(Options{ConfigFile: file, EnvFile: filepath.Join(dir, "none.env")})
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, "/tmp/videos", cfg.Assets.VideoPath)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero concurrency", "RENDER_CONCURRENCY", "0"},
		{"unknown tts provider", "TTS_PROVIDER", "espeak"},
		{"unknown stt fallback", "STT_FALLBACK", "vosk"},
		{"bad port", "PORT", "70000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load(noEnvFile(t))
			assert.Error(t, err)
		})
	}
}
