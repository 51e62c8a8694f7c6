// Package saga runs a fixed sequence of steps and undoes the completed ones
// when a later step fails.
package saga

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrSkipped is returned by a step that had nothing to do.
var ErrSkipped = errors.New("step skipped")

const compensationTimeout = 30 * time.Second

// Manager runs definitions on the caller's goroutine
type Manager struct {
	logger *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

// run is the mutable state of a single Run call
type run struct {
	rec   *Record
	steps []Step
	sink  EventSink
}

func (r *run) emit(step StepID, eventType string, err error) {
	ev := Event{
		RunID:      r.rec.ID,
		Definition: r.rec.Definition,
		StepID:     step,
		Type:       eventType,
		Timestamp:  time.Now(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	r.sink(ev)
}

func (r *run) finish(state State, eventType string) {
	now := time.Now()
	r.rec.State = state
	r.rec.CompletedAt = &now
	r.emit("", eventType, nil)
}

// Run executes def to completion. When a step fails, completed steps are
// compensated in reverse order and the step's error is returned unchanged.
func (m *Manager) Run(ctx context.Context, id RunID, def Definition, data Data, sink EventSink) (*Record, error) {
	if data == nil {
		data = Data{}
	}
	if sink == nil {
		sink = func(Event) {}
	}

	r := &run{
		rec: &Record{
			ID:         id,
			Definition: def.ID(),
			State:      StateRunning,
			Data:       data,
			StartedAt:  time.Now(),
		},
		steps: def.Steps(),
		sink:  sink,
	}
	r.rec.Steps = make([]StepRecord, len(r.steps))
	for i, step := range r.steps {
		r.rec.Steps[i] = StepRecord{ID: step.ID(), State: StepStatePending}
	}

	log := m.logger.With(zap.String("runID", string(id)), zap.String("definition", def.ID()))
	r.emit("", EventSagaStarted, nil)
	log.Info("Saga started")

	if timeout := def.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for i, step := range r.steps {
		sr := &r.rec.Steps[i]
		started := time.Now()
		sr.State = StepStateRunning
		sr.StartedAt = &started
		r.emit(sr.ID, EventStepStarted, nil)

		err := step.Execute(ctx, data)
		ended := time.Now()
		sr.CompletedAt = &ended

		switch {
		case errors.Is(err, ErrSkipped):
			sr.State = StepStateSkipped
			r.emit(sr.ID, EventStepSkipped, nil)
		case err != nil:
			sr.State = StepStateFailed
			sr.Error = err.Error()
			r.rec.Error = err.Error()
			r.emit(sr.ID, EventStepFailed, err)
			log.Error("Step failed", zap.String("stepID", string(sr.ID)), zap.Error(err))

			m.compensate(ctx, r, i, log)
			return r.rec, err
		default:
			sr.State = StepStateCompleted
			r.emit(sr.ID, EventStepCompleted, nil)
		}
	}

	r.finish(StateCompleted, EventSagaCompleted)
	log.Info("Saga completed", zap.Duration("elapsed", r.rec.CompletedAt.Sub(r.rec.StartedAt)))
	return r.rec, nil
}

// compensate walks back from failed-1. The run context may already be done,
// so compensation gets its own deadline.
func (m *Manager) compensate(runCtx context.Context, r *run, failed int, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(runCtx), compensationTimeout)
	defer cancel()

	for i := failed - 1; i >= 0; i-- {
		sr := &r.rec.Steps[i]
		if sr.State != StepStateCompleted {
			continue
		}
		log.Info("Compensating step", zap.String("stepID", string(sr.ID)))
		if err := r.steps[i].Compensate(ctx, r.rec.Data); err != nil {
			log.Error("Compensation failed", zap.String("stepID", string(sr.ID)), zap.Error(err))
			continue
		}
		sr.State = StepStateCompensated
		r.emit(sr.ID, EventStepCompensated, nil)
	}

	r.finish(StateCompensated, EventSagaCompensated)
	log.Info("Saga compensated")
}
