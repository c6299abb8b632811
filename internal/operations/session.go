package operations

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"agmipx/internal/query"
	"agmipx/internal/reshape"
)

// Session holds one user's explorer state: the last search result and the
// last pipeline output. Only one action (search, run or reset) may be in
// flight at a time; a second one fails with ErrOperationRunning.
type Session struct {
	action sync.Mutex

	mu      sync.RWMutex
	engine  *query.Engine
	manager *Manager
	logger  *slog.Logger
	phase   Phase
	results *query.ResultTable
	output  *Output
	running *RunState
	cancel  context.CancelFunc
}

// NewSession creates an idle session over engine
func NewSession(engine *query.Engine, manager *Manager, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if manager == nil {
		manager = NewManager(nil, logger)
	}
	return &Session{
		engine:  engine,
		manager: manager,
		logger:  logger.With(slog.String("component", "session")),
		phase:   PhaseIdle,
	}
}

// Search filters the dataset. Success replaces the result and discards any
// earlier output; failure returns the session to idle.
func (s *Session) Search(ctx context.Context, c query.Criteria) (*query.ResultTable, error) {
	if !s.action.TryLock() {
		return nil, ErrOperationRunning
	}
	defer s.action.Unlock()

	tracer := s.manager.GetTracer()
	spanCtx, span := tracer.TraceSearch(ctx, c.String())
	start := time.Now()
	res, err := s.engine.Search(spanCtx, c)
	matched := 0
	if res != nil {
		matched = res.Len()
	}
	tracer.RecordSearch(spanCtx, span, matched, time.Since(start), err)

	if err != nil {
		return nil, s.failSearch(ctx, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = nil
	s.phase = PhaseQueried
	s.results = res
	s.logger.InfoContext(ctx, "search completed",
		slog.String("criteria", c.String()),
		slog.Int("matched", matched))
	s.manager.GetBroadcaster().Publish(EventTypeSearchComplete, "completed", map[string]interface{}{
		"criteria": c.String(),
		"matched":  matched,
	})
	return res, nil
}

// Reject records a search whose criteria could not be built. The session
// returns to idle exactly as if the search itself had failed.
func (s *Session) Reject(ctx context.Context, err error) error {
	if !s.action.TryLock() {
		return ErrOperationRunning
	}
	defer s.action.Unlock()
	return s.failSearch(ctx, err)
}

// failSearch discards results and output; the caller holds the action lock
func (s *Session) failSearch(ctx context.Context, err error) error {
	s.mu.Lock()
	s.phase = PhaseIdle
	s.results = nil
	s.output = nil
	s.mu.Unlock()

	s.logger.WarnContext(ctx, "search failed", slog.String("error", err.Error()))
	if ctx.Err() != nil {
		return NewCancellationError(StepIDSearch, err)
	}
	return &OperationError{Type: ErrorTypeValidation, Step: StepIDSearch, Message: "search failed", Cause: err}
}

// Run reshapes the current search result. Each run starts over from the
// search result; on failure the session stays queried with no output.
func (s *Session) Run(ctx context.Context, opts reshape.Options) (*Output, error) {
	if !s.action.TryLock() {
		return nil, ErrOperationRunning
	}
	defer s.action.Unlock()

	s.mu.Lock()
	if s.results == nil {
		s.mu.Unlock()
		return nil, ErrNoResults
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	state := NewRunState(s.results.Records, opts)
	s.phase = PhaseQueried
	s.output = nil
	s.running = state
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "pipeline run started",
		slog.String("run_id", state.ID),
		slog.String("title", opts.Title()),
		slog.Int("records", len(state.Records)))

	err := s.manager.Execute(runCtx, state)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = nil
	s.cancel = nil
	if err != nil {
		s.phase = PhaseQueried
		s.logger.WarnContext(ctx, "pipeline run failed",
			slog.String("run_id", state.ID),
			slog.String("step", StepOf(err)),
			slog.String("error", err.Error()))
		return nil, err
	}

	xNumeric, yNumeric := opts.AxisFlags()
	out := &Output{
		RunID:    state.ID,
		Table:    state.GetTable(),
		Title:    opts.Title(),
		XNumeric: xNumeric,
		YNumeric: yNumeric,
		Options:  opts,
		Steps:    state.Summaries(s.manager.GetRegistry().ListIDs()),
	}
	s.phase = PhaseReady
	s.output = out
	s.logger.InfoContext(ctx, "pipeline run completed",
		slog.String("run_id", state.ID),
		slog.Int("rows", out.Table.NumRows()),
		slog.Int("cols", out.Table.NumCols()),
		slog.Duration("duration", state.Duration()))
	return out, nil
}

// Cancel stops the in-flight run, reporting whether there was one
func (s *Session) Cancel() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// Reset discards results and output and returns to idle
func (s *Session) Reset() error {
	if !s.action.TryLock() {
		return ErrOperationRunning
	}
	defer s.action.Unlock()

	s.mu.Lock()
	s.phase = PhaseIdle
	s.results = nil
	s.output = nil
	s.mu.Unlock()

	s.manager.GetBroadcaster().Publish(EventTypeSessionReset, "idle", nil)
	return nil
}

// Phase reports the session's position, including progress of a live run
func (s *Session) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.running != nil {
		return s.running.GetPhase()
	}
	return s.phase
}

// Busy reports whether a run is in flight
func (s *Session) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running != nil
}

// RunID returns the ID of the in-flight run, or ""
func (s *Session) RunID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.running == nil {
		return ""
	}
	return s.running.ID
}

// Results returns the current search result, or nil
func (s *Session) Results() *query.ResultTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.results
}

// Output returns the last successful run's output, or nil
func (s *Session) Output() *Output {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.output
}

// Engine returns the query engine behind the session
func (s *Session) Engine() *query.Engine {
	return s.engine
}

// Manager returns the pipeline manager behind the session
func (s *Session) Manager() *Manager {
	return s.manager
}
