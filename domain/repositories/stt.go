package repositories

import "context"

// SpeechToText abstracts speech recognition services
type SpeechToText interface {
	// Name identifies the provider in logs and metrics
	Name() string
	// Available reports whether the provider is configured to accept work
	Available() bool
	// TranscribeFile converts the audio stored at path to text
	TranscribeFile(ctx context.Context, path string, config AudioConfig) (string, error)
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	Model      string `json:"model"`
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}
