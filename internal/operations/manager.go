package operations

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Manager runs the registered steps over a RunState, in registration order
type Manager struct {
	registry    *Registry
	broadcaster *StatusBroadcaster
	tracer      *PipelineTracer
	logger      *slog.Logger
	timeout     time.Duration
}

// ManagerOption customizes a Manager
type ManagerOption func(*Manager)

// WithBroadcaster publishes run progress through b
func WithBroadcaster(b *StatusBroadcaster) ManagerOption {
	return func(m *Manager) { m.broadcaster = b }
}

// WithTracer records spans and metrics through t
func WithTracer(t *PipelineTracer) ManagerOption {
	return func(m *Manager) { m.tracer = t }
}

// WithTimeout bounds a whole run; zero means no bound
func WithTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.timeout = d }
}

// NewManager creates a manager over registry. A nil registry means the standard pipeline.
func NewManager(registry *Registry, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if registry == nil {
		registry = NewPipelineRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		registry: registry,
		logger:   logger.With(slog.String("component", "pipeline_manager")),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.broadcaster == nil {
		m.broadcaster = NewStatusBroadcaster(nil, logger)
	}
	if m.tracer == nil {
		m.tracer = NewNoopTracer()
	}
	return m
}

// GetRegistry returns the step registry
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// GetBroadcaster returns the status broadcaster
func (m *Manager) GetBroadcaster() *StatusBroadcaster {
	return m.broadcaster
}

// GetTracer returns the pipeline tracer
func (m *Manager) GetTracer() *PipelineTracer {
	return m.tracer
}

// Execute runs every step against state. On failure the error names the
// failing step and later steps are marked skipped.
func (m *Manager) Execute(ctx context.Context, state *RunState) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	steps := m.registry.List()
	for _, s := range steps {
		state.GetStep(s.ID(), s.Name())
	}

	m.broadcaster.CreateRun(state.ID, steps)
	state.Start()
	m.broadcaster.StartRun(state.ID)

	ctx, span := m.tracer.TraceRun(ctx, state.ID, state.Options)
	err := m.executeSequential(ctx, state, steps)
	m.tracer.RecordRunCompletion(ctx, span, state.ID, state.Duration(), err)

	switch {
	case err == nil:
		state.Complete()
		m.broadcaster.CompleteRun(state.ID, "Run completed successfully")
	case GetErrorType(err) == ErrorTypeCancellation:
		state.Cancel(err)
		m.broadcaster.CancelRun(state.ID)
	default:
		state.Fail(err)
		m.broadcaster.FailRun(state.ID, err)
	}
	return err
}

func (m *Manager) executeSequential(ctx context.Context, state *RunState, steps []Step) error {
	m.logger.DebugContext(ctx, "sequential execution start",
		slog.String("run_id", state.ID),
		slog.Int("step_count", len(steps)))

	for i, step := range steps {
		select {
		case <-ctx.Done():
			m.logger.WarnContext(ctx, "run cancelled",
				slog.String("run_id", state.ID),
				slog.String("step", step.ID()))
			m.skipRemaining(state, steps[i:], "run cancelled")
			return NewCancellationError(step.ID(), ctx.Err())
		default:
		}

		stepState := state.GetStep(step.ID(), step.Name())
		if !Requested(step.ID(), state.Options) {
			stepState.Skip("not requested")
			m.broadcaster.SkipStep(state.ID, step.ID(), "not requested")
			continue
		}

		if err := m.executeStep(ctx, state, step, stepState); err != nil {
			m.logger.ErrorContext(ctx, "step failed",
				slog.String("run_id", state.ID),
				slog.String("step", step.ID()),
				slog.Int("step_number", i+1),
				slog.String("error", err.Error()))
			m.skipRemaining(state, steps[i+1:], fmt.Sprintf("step %s failed", step.ID()))
			return err
		}
	}

	m.logger.DebugContext(ctx, "all steps completed", slog.String("run_id", state.ID))
	return nil
}

func (m *Manager) executeStep(ctx context.Context, state *RunState, step Step, stepState *StepState) error {
	if err := step.Validate(state); err != nil {
		opErr := NewValidationError(step.ID(), err)
		stepState.Fail(opErr)
		m.broadcaster.FailStep(state.ID, step.ID(), opErr)
		return opErr
	}

	stepCtx, span := m.tracer.TraceStep(ctx, state.ID, step.ID())
	stepState.Start()
	m.broadcaster.StartStep(state.ID, step.ID())

	err := step.Execute(stepCtx, state)
	var opErr *OperationError
	if err != nil {
		opErr = WrapError(err, step.ID())
	}
	if opErr != nil {
		stepState.Fail(opErr)
		m.tracer.RecordStepCompletion(stepCtx, span, step.ID(), stepState.Duration(), opErr)
		m.broadcaster.FailStep(state.ID, step.ID(), opErr)
		return opErr
	}

	msg := describeTable(state)
	stepState.Complete(msg)
	m.tracer.RecordStepCompletion(stepCtx, span, step.ID(), stepState.Duration(), nil)
	m.broadcaster.CompleteStep(state.ID, step.ID(), msg)

	m.logger.DebugContext(ctx, "step completed",
		slog.String("run_id", state.ID),
		slog.String("step", step.ID()),
		slog.Duration("duration", stepState.Duration()))
	return nil
}

func (m *Manager) skipRemaining(state *RunState, steps []Step, reason string) {
	for _, s := range steps {
		st := state.GetStep(s.ID(), s.Name())
		if st.GetStatus() == StepStatusPending {
			st.Skip(reason)
			m.broadcaster.SkipStep(state.ID, s.ID(), reason)
		}
	}
}

func describeTable(state *RunState) string {
	t := state.GetTable()
	if t == nil {
		return ""
	}
	return fmt.Sprintf("%d rows x %d columns, %d missing", t.NumRows(), t.NumCols(), t.MissingCount())
}
