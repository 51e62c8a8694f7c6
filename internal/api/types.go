package api

// SpeakRequest is the form of POST /audio/speak
type SpeakRequest struct {
	Text  string `form:"text" validate:"required"`
	Voice string `form:"voice" validate:"omitempty,max=64"`
}

// GenerateVideoRequest is the form of POST /video/generate; the image comes
// as a multipart file.
type GenerateVideoRequest struct {
	AudioPath string `form:"audio_path" validate:"required"`
	ClientID  string `form:"client_id" validate:"omitempty,max=128"`
}

// ConversationReplyRequest is the form of POST /conversation/reply
type ConversationReplyRequest struct {
	Text     string `form:"text" validate:"required"`
	Voice    string `form:"voice" validate:"omitempty,max=64"`
	ClientID string `form:"client_id" validate:"omitempty,max=128"`
}

// VideoLocation is the payload of GET /video/stream/:video_id
type VideoLocation struct {
	VideoPath string `json:"video_path"`
}

// HealthResponse is the payload of GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}
