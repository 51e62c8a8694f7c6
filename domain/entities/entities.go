package entities

// Transcript is the result of speech-to-text
type Transcript struct {
	Text      string `json:"text"`
	RequestID string `json:"request_id"`
}

// SpeechArtifact is a synthesized audio file on disk
type SpeechArtifact struct {
	AudioPath string `json:"audio_path"`
	RequestID string `json:"request_id"`
}

// UploadedAudio is a client-supplied audio file kept for later rendering
type UploadedAudio struct {
	AudioPath string `json:"audio_path"`
	Filename  string `json:"filename"`
}

// VideoArtifact is a rendered talking-avatar video
type VideoArtifact struct {
	VideoPath string `json:"video_path"`
	RequestID string `json:"request_id"`
	VideoURL  string `json:"video_url,omitempty"`
}

// ConversationTurn is one pass of text -> speech -> video
type ConversationTurn struct {
	RequestID string `json:"request_id"`
	InputText string `json:"input_text"`
	ReplyText string `json:"reply_text"`
	AudioPath string `json:"audio_path"`
	VideoPath string `json:"video_path"`
	VideoURL  string `json:"video_url,omitempty"`
}

// VideoRequest is the input of one avatar render
type VideoRequest struct {
	Image     []byte
	AudioPath string
	// ClientID, when set, receives progress events
	ClientID string
}

// ConversationRequest is the input of one conversation turn
type ConversationRequest struct {
	Text     string
	Voice    string
	Image    []byte
	Reply    bool
	ClientID string
}

// ProgressEvent is pushed to a connected client while a request runs
type ProgressEvent struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Stage     string `json:"stage,omitempty"`
	State     string `json:"state,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
