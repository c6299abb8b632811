package operations

import (
	"time"

	"agmipx/internal/reshape"
)

// Pipeline step identifiers, in execution order
const (
	StepIDPivot       = "pivot"
	StepIDFill        = "fill"
	StepIDIndex       = "index"
	StepIDHarmonize   = "harmonize"
	StepIDDropMissing = "dropna"
)

// StepIDSearch names the query stage in errors; it is not a registered step
const StepIDSearch = "search"

// Pipeline step names
const (
	StepNamePivot       = "Pivot"
	StepNameFill        = "Fill Gaps"
	StepNameIndex       = "Index to Reference"
	StepNameHarmonize   = "Harmonize"
	StepNameDropMissing = "Drop Empty Rows and Columns"
)

// WebSocket event types
const (
	EventTypeOperationSnapshot = "operation:snapshot"
	EventTypeSearchComplete    = "search:complete"
	EventTypeSessionReset      = "session:reset"
)

// Phase is the session's position in the pipeline
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseQueried    Phase = "queried"
	PhasePivoted    Phase = "pivoted"
	PhaseFilled     Phase = "filled"
	PhaseIndexed    Phase = "indexed"
	PhaseHarmonized Phase = "harmonized"
	PhaseReady      Phase = "ready"
)

// Output is what a successful run hands to the presentation layer
type Output struct {
	RunID    string
	Table    *reshape.Table
	Title    string
	XNumeric bool
	YNumeric bool
	Options  reshape.Options
	Steps    []StepSummary
}

// StepSummary reports how one step of a run went
type StepSummary struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Status   StepStatus    `json:"status"`
	Duration time.Duration `json:"duration"`
	Message  string        `json:"message,omitempty"`
}
