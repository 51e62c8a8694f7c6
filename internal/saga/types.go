package saga

import (
	"context"
	"time"
)

// State is the outcome of a run as a whole
type State string

const (
	StateRunning     State = "running"
	StateCompleted   State = "completed"
	StateCompensated State = "compensated"
)

type StepState string

const (
	StepStatePending     StepState = "pending"
	StepStateRunning     StepState = "running"
	StepStateCompleted   StepState = "completed"
	StepStateFailed      StepState = "failed"
	StepStateSkipped     StepState = "skipped"
	StepStateCompensated StepState = "compensated"
)

type (
	RunID  string
	StepID string
)

// Data carries inputs and outputs between steps of one run.
type Data map[string]any

// String returns the string stored under key, or "".
func (d Data) String(key string) string {
	v, _ := d[key].(string)
	return v
}

// Bool returns the bool stored under key, or false.
func (d Data) Bool(key string) bool {
	v, _ := d[key].(bool)
	return v
}

type Step interface {
	ID() StepID
	// Execute returns ErrSkipped when there was nothing to do; the run
	// carries on.
	Execute(ctx context.Context, data Data) error
	// Compensate undoes a completed step after a later one failed.
	Compensate(ctx context.Context, data Data) error
}

// Definition is an ordered list of steps with an overall deadline
type Definition interface {
	ID() string
	Steps() []Step
	Timeout() time.Duration
}

// Record describes a finished (or failed) run
type Record struct {
	ID          RunID        `json:"id"`
	Definition  string       `json:"definition"`
	State       State        `json:"state"`
	Data        Data         `json:"-"`
	Steps       []StepRecord `json:"steps"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Error       string       `json:"error,omitempty"`
}

type StepRecord struct {
	ID          StepID     `json:"id"`
	State       StepState  `json:"state"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Event is emitted at every run and step transition
type Event struct {
	RunID      RunID     `json:"run_id"`
	Definition string    `json:"definition"`
	StepID     StepID    `json:"step_id,omitempty"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	Error      string    `json:"error,omitempty"`
}

// EventSink is called synchronously on the running goroutine and must not
// block.
type EventSink func(Event)

const (
	EventSagaStarted     = "saga_started"
	EventSagaCompleted   = "saga_completed"
	EventSagaCompensated = "saga_compensated"
	EventStepStarted     = "step_started"
	EventStepCompleted   = "step_completed"
	EventStepSkipped     = "step_skipped"
	EventStepFailed      = "step_failed"
	EventStepCompensated = "step_compensated"
)
