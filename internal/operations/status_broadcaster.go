package operations

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Hub receives broadcast events; the websocket hub implements it
type Hub interface {
	BroadcastUpdate(eventType, step, status string, metadata interface{})
}

// StatusBroadcaster owns the progress snapshots of pipeline runs and pushes
// every change to the hub. Updates are applied one at a time on its own goroutine.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	runs    map[string]*RunSnapshot
	hub     Hub
	logger  *slog.Logger
	updates chan updateRequest
	stop    chan struct{}
	once    sync.Once
}

// RunSnapshot is the complete state of a run at a point in time
type RunSnapshot struct {
	RunID       string         `json:"run_id"`
	Status      RunStatus      `json:"status"`
	Progress    int            `json:"progress"`
	CurrentStep string         `json:"current_step,omitempty"`
	Steps       []StepSnapshot `json:"steps"`
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// StepSnapshot is the state of a single step inside a RunSnapshot
type StepSnapshot struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Status  StepStatus `json:"status"`
	Message string     `json:"message,omitempty"`
	Error   string     `json:"error,omitempty"`
}

type updateRequest struct {
	runID      string
	updateFunc func(*RunSnapshot)
	done       chan struct{}
}

// NewStatusBroadcaster creates a broadcaster; hub may be nil
func NewStatusBroadcaster(hub Hub, logger *slog.Logger) *StatusBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}

	sb := &StatusBroadcaster{
		runs:    make(map[string]*RunSnapshot),
		hub:     hub,
		logger:  logger.With(slog.String("component", "status_broadcaster")),
		updates: make(chan updateRequest, 100),
		stop:    make(chan struct{}),
	}

	go sb.processUpdates()

	return sb
}

func (sb *StatusBroadcaster) processUpdates() {
	for {
		select {
		case <-sb.stop:
			return
		case req := <-sb.updates:
			sb.handleUpdate(req)
		}
	}
}

func (sb *StatusBroadcaster) handleUpdate(req updateRequest) {
	defer close(req.done)

	sb.mu.Lock()
	snapshot, exists := sb.runs[req.runID]
	if !exists {
		now := time.Now()
		snapshot = &RunSnapshot{
			RunID:     req.runID,
			Status:    RunStatusPending,
			StartedAt: now,
			Steps:     []StepSnapshot{},
		}
		sb.runs[req.runID] = snapshot
	}

	req.updateFunc(snapshot)
	snapshot.UpdatedAt = time.Now()

	if n := len(snapshot.Steps); n > 0 {
		done := 0
		for _, step := range snapshot.Steps {
			if step.Status == StepStatusCompleted || step.Status == StepStatusSkipped {
				done++
			}
		}
		snapshot.Progress = done * 100 / n
	}

	if isTerminal(snapshot.Status) && snapshot.CompletedAt == nil {
		now := time.Now()
		snapshot.CompletedAt = &now
	}
	out := snapshot.clone()
	sb.mu.Unlock()

	sb.broadcast(out)
}

func (sb *StatusBroadcaster) broadcast(snapshot *RunSnapshot) {
	if sb.hub == nil {
		return
	}

	sb.logger.Debug("broadcasting run snapshot",
		slog.String("run_id", snapshot.RunID),
		slog.String("status", string(snapshot.Status)),
		slog.Int("progress", snapshot.Progress),
		slog.String("current_step", snapshot.CurrentStep),
	)

	sb.hub.BroadcastUpdate(EventTypeOperationSnapshot, snapshot.RunID, "update", snapshot)
}

// Publish forwards an event that is not tied to a run
func (sb *StatusBroadcaster) Publish(eventType, status string, metadata interface{}) {
	if sb.hub == nil {
		return
	}
	sb.hub.BroadcastUpdate(eventType, "", status, metadata)
}

// UpdateStatus applies updateFunc to a run's snapshot and waits for it.
// After Stop it is a no-op.
func (sb *StatusBroadcaster) UpdateStatus(runID string, updateFunc func(*RunSnapshot)) {
	req := updateRequest{
		runID:      runID,
		updateFunc: updateFunc,
		done:       make(chan struct{}),
	}

	select {
	case <-sb.stop:
		return
	default:
	}
	select {
	case sb.updates <- req:
	case <-sb.stop:
		return
	}
	select {
	case <-req.done:
	case <-sb.stop:
	}
}

// CreateRun registers a run with its steps in execution order
func (sb *StatusBroadcaster) CreateRun(runID string, steps []Step) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		snapshot.Status = RunStatusPending
		snapshot.Steps = make([]StepSnapshot, len(steps))
		for i, s := range steps {
			snapshot.Steps[i] = StepSnapshot{ID: s.ID(), Name: s.Name(), Status: StepStatusPending}
		}
		snapshot.Message = "Run created"
	})
}

// StartRun marks a run as running
func (sb *StatusBroadcaster) StartRun(runID string) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		snapshot.Status = RunStatusRunning
		snapshot.Message = "Run started"
	})
}

// StartStep marks a step as active
func (sb *StatusBroadcaster) StartStep(runID, stepID string) {
	sb.setStep(runID, stepID, func(step *StepSnapshot, snapshot *RunSnapshot) {
		step.Status = StepStatusActive
		snapshot.CurrentStep = step.Name
	})
}

// CompleteStep marks a step as completed
func (sb *StatusBroadcaster) CompleteStep(runID, stepID, message string) {
	sb.setStep(runID, stepID, func(step *StepSnapshot, _ *RunSnapshot) {
		step.Status = StepStatusCompleted
		step.Message = message
	})
}

// SkipStep marks a step as skipped
func (sb *StatusBroadcaster) SkipStep(runID, stepID, reason string) {
	sb.setStep(runID, stepID, func(step *StepSnapshot, _ *RunSnapshot) {
		step.Status = StepStatusSkipped
		step.Message = reason
	})
}

// FailStep marks a step as failed
func (sb *StatusBroadcaster) FailStep(runID, stepID string, err error) {
	sb.setStep(runID, stepID, func(step *StepSnapshot, _ *RunSnapshot) {
		step.Status = StepStatusFailed
		step.Error = err.Error()
	})
}

func (sb *StatusBroadcaster) setStep(runID, stepID string, apply func(*StepSnapshot, *RunSnapshot)) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		for i := range snapshot.Steps {
			if snapshot.Steps[i].ID == stepID {
				apply(&snapshot.Steps[i], snapshot)
				return
			}
		}
		snapshot.Steps = append(snapshot.Steps, StepSnapshot{ID: stepID, Name: stepID})
		apply(&snapshot.Steps[len(snapshot.Steps)-1], snapshot)
	})
}

// CompleteRun marks a run as completed
func (sb *StatusBroadcaster) CompleteRun(runID, message string) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		snapshot.Status = RunStatusCompleted
		snapshot.CurrentStep = ""
		snapshot.Message = message
	})
}

// FailRun marks a run as failed
func (sb *StatusBroadcaster) FailRun(runID string, err error) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		snapshot.Status = RunStatusFailed
		snapshot.Error = err.Error()
		snapshot.CurrentStep = ""
	})
}

// CancelRun marks a run as cancelled
func (sb *StatusBroadcaster) CancelRun(runID string) {
	sb.UpdateStatus(runID, func(snapshot *RunSnapshot) {
		snapshot.Status = RunStatusCancelled
		snapshot.CurrentStep = ""
		snapshot.Message = "Run cancelled"
	})
}

// GetSnapshot returns a copy of a run's snapshot
func (sb *StatusBroadcaster) GetSnapshot(runID string) (*RunSnapshot, bool) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshot, exists := sb.runs[runID]
	if !exists {
		return nil, false
	}
	return snapshot.clone(), true
}

// CleanupOldRuns drops finished runs older than maxAge
func (sb *StatusBroadcaster) CleanupOldRuns(ctx context.Context, maxAge time.Duration) int {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	removed := 0
	now := time.Now()
	for id, snapshot := range sb.runs {
		if ctx.Err() != nil {
			break
		}
		if snapshot.CompletedAt != nil && now.Sub(*snapshot.CompletedAt) > maxAge {
			delete(sb.runs, id)
			removed++
		}
	}
	if removed > 0 {
		sb.logger.Info("cleaned up old runs", slog.Int("removed", removed))
	}
	return removed
}

// Stop shuts down the update loop; safe to call more than once
func (sb *StatusBroadcaster) Stop() {
	sb.once.Do(func() { close(sb.stop) })
}

func (s *RunSnapshot) clone() *RunSnapshot {
	out := *s
	out.Steps = append([]StepSnapshot(nil), s.Steps...)
	return &out
}

func isTerminal(s RunStatus) bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}
