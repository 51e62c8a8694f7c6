package conversation

import (
	"time"

	"go.uber.org/zap"

	"github.com/mhire/liveavatar/internal/saga"
)

const DefinitionID = "conversation_turn"

// Definition chains reply composition, speech synthesis and avatar rendering
type Definition struct {
	composer    ReplyComposer
	synthesizer Synthesizer
	renderer    VideoGenerator
	timeout     time.Duration
	logger      *zap.Logger
}

func NewDefinition(composer ReplyComposer, synthesizer Synthesizer, renderer VideoGenerator, timeout time.Duration, logger *zap.Logger) *Definition {
	return &Definition{
		composer:    composer,
		synthesizer: synthesizer,
		renderer:    renderer,
		timeout:     timeout,
		logger:      logger,
	}
}

func (d *Definition) ID() string { return DefinitionID }

func (d *Definition) Timeout() time.Duration { return d.timeout }

func (d *Definition) Steps() []saga.Step {
	return []saga.Step{
		&ComposeReplyStep{composer: d.composer, logger: d.logger},
		&SynthesizeSpeechStep{synthesizer: d.synthesizer, logger: d.logger},
		&RenderVideoStep{renderer: d.renderer, logger: d.logger},
	}
}
