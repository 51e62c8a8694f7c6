package conversation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mhire/liveavatar/domain/entities"
	"github.com/mhire/liveavatar/internal/saga"
)

// Data keys for the conversation saga
const (
	DataKeyInputText = "input_text"
	DataKeyWantReply = "want_reply"
	DataKeyVoice     = "voice"
	DataKeyImage     = "image"
	DataKeyClientID  = "client_id"
	DataKeyReplyText = "reply_text"
	DataKeyAudioPath = "audio_path"
	DataKeyVideoPath = "video_path"
	DataKeyVideoURL  = "video_url"
	DataKeyRequestID = "request_id"
)

type ReplyComposer interface {
	Compose(ctx context.Context, text string, wantReply bool) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (*entities.SpeechArtifact, error)
	RemoveAudio(path string) error
}

type VideoGenerator interface {
	Generate(ctx context.Context, req entities.VideoRequest) (*entities.VideoArtifact, error)
}

// ComposeReplyStep decides what the avatar will say
type ComposeReplyStep struct {
	composer ReplyComposer
	logger   *zap.Logger
}

func (s *ComposeReplyStep) ID() saga.StepID { return "compose_reply" }

func (s *ComposeReplyStep) Execute(ctx context.Context, data saga.Data) error {
	input := data.String(DataKeyInputText)
	if !data.Bool(DataKeyWantReply) {
		data[DataKeyReplyText] = input
		return saga.ErrSkipped
	}

	reply, err := s.composer.Compose(ctx, input, true)
	if err != nil {
		return err
	}
	data[DataKeyReplyText] = reply
	return nil
}

func (s *ComposeReplyStep) Compensate(ctx context.Context, data saga.Data) error {
	return nil
}

// SynthesizeSpeechStep turns the reply into an audio artifact
type SynthesizeSpeechStep struct {
	synthesizer Synthesizer
	logger      *zap.Logger
}

func (s *SynthesizeSpeechStep) ID() saga.StepID { return "synthesize_speech" }

func (s *SynthesizeSpeechStep) Execute(ctx context.Context, data saga.Data) error {
	artifact, err := s.synthesizer.Synthesize(ctx, data.String(DataKeyReplyText), data.String(DataKeyVoice))
	if err != nil {
		return err
	}
	data[DataKeyAudioPath] = artifact.AudioPath
	return nil
}

// Compensate removes the audio produced for a turn that did not finish
func (s *SynthesizeSpeechStep) Compensate(ctx context.Context, data saga.Data) error {
	path := data.String(DataKeyAudioPath)
	if path == "" {
		return nil
	}
	s.logger.Info("Removing audio of failed turn", zap.String("path", path))
	return s.synthesizer.RemoveAudio(path)
}

// RenderVideoStep renders the avatar speaking the synthesized audio
type RenderVideoStep struct {
	renderer VideoGenerator
	logger   *zap.Logger
}

func (s *RenderVideoStep) ID() saga.StepID { return "render_video" }

func (s *RenderVideoStep) Execute(ctx context.Context, data saga.Data) error {
	image, ok := data[DataKeyImage].([]byte)
	if !ok {
		return fmt.Errorf("missing avatar image")
	}

	video, err := s.renderer.Generate(ctx, entities.VideoRequest{
		Image:     image,
		AudioPath: data.String(DataKeyAudioPath),
		ClientID:  data.String(DataKeyClientID),
	})
	if err != nil {
		return err
	}
	data[DataKeyVideoPath] = video.VideoPath
	data[DataKeyVideoURL] = video.VideoURL
	return nil
}

func (s *RenderVideoStep) Compensate(ctx context.Context, data saga.Data) error {
	return nil
}
