package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mhire/liveavatar/domain/repositories"
	"github.com/mhire/liveavatar/internal/apperr"
)

// ChatService decides what the avatar says back
type ChatService struct {
	llm    repositories.LargeLanguageModel
	logger *zap.Logger
}

// NewChatService creates a new chat service. llm may be nil, in which case
// input text is spoken back unchanged.
func NewChatService(llm repositories.LargeLanguageModel, logger *zap.Logger) *ChatService {
	return &ChatService{llm: llm, logger: logger}
}

// Compose returns the text the avatar should speak for input
func (s *ChatService) Compose(ctx context.Context, text string, wantReply bool) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperr.New(apperr.InvalidInput, "Text cannot be empty")
	}
	if !wantReply || s.llm == nil {
		return text, nil
	}

	reply, err := s.llm.Generate(ctx, text)
	if err != nil {
		s.logger.Error("Failed to generate reply", zap.Error(err))
		if isDeadline(ctx, err) {
			return "", apperr.Wrap(apperr.Timeout, err, "Reply generation timed out")
		}
		return "", apperr.Wrap(apperr.Unexpected, err, "Reply generation failed")
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		s.logger.Error("Reply generation returned no text", zap.Int("inputLength", len(text)))
		return "", apperr.New(apperr.Unexpected, "Reply generation returned no text")
	}
	s.logger.Info("Generated reply", zap.Int("inputLength", len(text)), zap.Int("replyLength", len(reply)))
	return reply, nil
}
