package operations

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"agmipx/internal/dataset"
	"agmipx/internal/reshape"
)

// RunStatus represents the overall status of a pipeline run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunState carries one pipeline run from the search result to the final table.
// Steps replace Table; the records are never modified.
type RunState struct {
	mu sync.RWMutex

	ID        string
	Status    RunStatus
	StartTime time.Time
	EndTime   *time.Time

	Records []dataset.Record
	Options reshape.Options

	// Table is the working table; nil until the pivot step has run
	Table *reshape.Table
	Phase Phase

	Steps map[string]*StepState
	Error error
}

// NewRunState creates a pending run over records
func NewRunState(records []dataset.Record, opts reshape.Options) *RunState {
	return &RunState{
		ID:        uuid.NewString(),
		Status:    RunStatusPending,
		StartTime: time.Now(),
		Records:   records,
		Options:   opts,
		Phase:     PhaseQueried,
		Steps:     make(map[string]*StepState),
	}
}

// Start marks the run as running
func (s *RunState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = RunStatusRunning
	s.StartTime = time.Now()
}

// Complete marks the run as completed
func (s *RunState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = RunStatusCompleted
}

// Fail marks the run as failed
func (s *RunState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = RunStatusFailed
	s.Error = err
}

// Cancel marks the run as cancelled
func (s *RunState) Cancel(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = RunStatusCancelled
	s.Error = err
}

// GetStatus returns the run status
func (s *RunState) GetStatus() RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// GetTable returns the working table
func (s *RunState) GetTable() *reshape.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Table
}

// Advance installs the table a step produced and moves the phase forward
func (s *RunState) Advance(t *reshape.Table, phase Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Table = t
	s.Phase = phase
}

// GetPhase returns how far the run has progressed
func (s *RunState) GetPhase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Phase
}

// GetStep returns the state of a step, creating it on first use
func (s *RunState) GetStep(id, name string) *StepState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.Steps[id]
	if !ok {
		st = NewStepState(id, name)
		s.Steps[id] = st
	}
	return st
}

// Duration returns how long the run took or has been running
func (s *RunState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}

// Summaries lists step outcomes in the given order
func (s *RunState) Summaries(order []string) []StepSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StepSummary, 0, len(order))
	for _, id := range order {
		if st, ok := s.Steps[id]; ok {
			out = append(out, st.Summary())
		}
	}
	return out
}
