package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mhire/liveavatar/domain/entities"
	"github.com/mhire/liveavatar/internal/apperr"
	"github.com/mhire/liveavatar/internal/ident"
	"github.com/mhire/liveavatar/internal/saga"
	"github.com/mhire/liveavatar/internal/saga/conversation"
)

// EventTurnProgress is the progress event type for conversation saga events
const EventTurnProgress = "turn_progress"

// ConversationService orchestrates the conversation flow: reply, speech, video
type ConversationService struct {
	manager    *saga.Manager
	definition *conversation.Definition
	progress   ProgressSink
	logger     *zap.Logger
}

// NewConversationService creates a new conversation service. timeout bounds a
// whole turn.
func NewConversationService(
	composer conversation.ReplyComposer,
	synthesizer conversation.Synthesizer,
	renderer conversation.VideoGenerator,
	progress ProgressSink,
	timeout time.Duration,
	logger *zap.Logger,
) *ConversationService {
	if progress == nil {
		progress = nopSink{}
	}
	return &ConversationService{
		manager:    saga.NewManager(logger),
		definition: conversation.NewDefinition(composer, synthesizer, renderer, timeout, logger),
		progress:   progress,
		logger:     logger,
	}
}

// Reply runs one turn and returns its artifacts. Errors keep their kind.
func (s *ConversationService) Reply(ctx context.Context, req entities.ConversationRequest) (*entities.ConversationTurn, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, apperr.New(apperr.InvalidInput, "Text cannot be empty")
	}
	if len(req.Image) == 0 {
		return nil, apperr.New(apperr.InvalidInput, "Image file is empty")
	}

	requestID := ident.RequestID("conversation")
	data := saga.Data{
		conversation.DataKeyRequestID: requestID,
		conversation.DataKeyInputText: text,
		conversation.DataKeyWantReply: req.Reply,
		conversation.DataKeyVoice:     req.Voice,
		conversation.DataKeyImage:     req.Image,
		conversation.DataKeyClientID:  req.ClientID,
	}

	s.logger.Info("Conversation turn started",
		zap.String("requestID", requestID),
		zap.Bool("reply", req.Reply),
		zap.String("clientID", req.ClientID))

	instance, err := s.manager.Run(ctx, saga.RunID(requestID), s.definition, data, s.sink(req.ClientID))
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		if isDeadline(ctx, err) {
			return nil, apperr.Wrap(apperr.Timeout, err, "Conversation turn timed out")
		}
		return nil, apperr.Wrap(apperr.Unexpected, err, "Conversation turn failed")
	}

	return &entities.ConversationTurn{
		RequestID: requestID,
		InputText: text,
		ReplyText: instance.Data.String(conversation.DataKeyReplyText),
		AudioPath: instance.Data.String(conversation.DataKeyAudioPath),
		VideoPath: instance.Data.String(conversation.DataKeyVideoPath),
		VideoURL:  instance.Data.String(conversation.DataKeyVideoURL),
	}, nil
}

func (s *ConversationService) sink(clientID string) saga.EventSink {
	if clientID == "" {
		return nil
	}
	return func(e saga.Event) {
		s.progress.Publish(clientID, entities.ProgressEvent{
			Type:      EventTurnProgress,
			RequestID: string(e.RunID),
			Stage:     string(e.StepID),
			State:     e.Type,
			Error:     e.Error,
			Timestamp: e.Timestamp.UnixMilli(),
		})
	}
}
