package repositories

import "context"

type TextToSpeech interface {
	Name() string
	Available() bool
	// Format is the file extension of the audio SynthesizeAudio returns
	Format() string
	SynthesizeAudio(ctx context.Context, text string, config VoiceConfig) ([]byte, error)
}

// VoiceConfig represents voice configuration for TTS
type VoiceConfig struct {
	Voice string `json:"voice"`
	Model string `json:"model"`
}
