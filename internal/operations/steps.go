package operations

import (
	"context"
	"fmt"

	"agmipx/internal/reshape"
)

// Requested reports whether a step is part of the run described by opts.
// Pivot and drop-missing always run.
func Requested(stepID string, opts reshape.Options) bool {
	switch stepID {
	case StepIDFill:
		return opts.Fill != "" && opts.Fill != reshape.FillNone
	case StepIDIndex:
		return opts.Index != nil
	case StepIDHarmonize:
		return opts.Harmonize != nil
	default:
		return true
	}
}

// PivotStep reshapes the search result into the working table
type PivotStep struct {
	BaseStep
}

// NewPivotStep creates the pivot step
func NewPivotStep() *PivotStep {
	return &PivotStep{BaseStep: NewBaseStep(StepIDPivot, StepNamePivot)}
}

// Validate checks the pivot settings
func (s *PivotStep) Validate(state *RunState) error {
	return state.Options.Pivot.Validate()
}

// Execute builds the table from the run's records
func (s *PivotStep) Execute(ctx context.Context, state *RunState) error {
	t, err := reshape.Pivot(state.Records, state.Options.Pivot)
	if err != nil {
		return err
	}
	state.Advance(t, PhasePivoted)
	return nil
}

// FillStep closes gaps down each column
type FillStep struct {
	BaseStep
}

// NewFillStep creates the fill step
func NewFillStep() *FillStep {
	return &FillStep{BaseStep: NewBaseStep(StepIDFill, StepNameFill)}
}

// Validate checks the fill method and that a table exists
func (s *FillStep) Validate(state *RunState) error {
	if state.GetTable() == nil {
		return fmt.Errorf("no table to fill")
	}
	_, err := reshape.ParseFillMethod(string(state.Options.Fill))
	return err
}

// Execute fills the working table
func (s *FillStep) Execute(ctx context.Context, state *RunState) error {
	t, err := reshape.Fill(state.GetTable(), state.Options.Fill)
	if err != nil {
		return err
	}
	state.Advance(t, PhaseFilled)
	return nil
}

// IndexStep rebases the table to a reference row or column
type IndexStep struct {
	BaseStep
}

// NewIndexStep creates the index step
func NewIndexStep() *IndexStep {
	return &IndexStep{BaseStep: NewBaseStep(StepIDIndex, StepNameIndex)}
}

// Validate checks that a reference was chosen
func (s *IndexStep) Validate(state *RunState) error {
	if state.GetTable() == nil {
		return fmt.Errorf("no table to index")
	}
	if state.Options.Index == nil || state.Options.Index.Reference == "" {
		return &reshape.PivotConfigError{Field: "index", Reason: "reference label is required"}
	}
	return nil
}

// Execute indexes the working table
func (s *IndexStep) Execute(ctx context.Context, state *RunState) error {
	opts := state.Options.Index
	t, err := reshape.Index(state.GetTable(), opts.Reference, opts.OnRow)
	if err != nil {
		return err
	}
	state.Advance(t, PhaseIndexed)
	return nil
}

// HarmonizeStep anchors every column to a base cell
type HarmonizeStep struct {
	BaseStep
}

// NewHarmonizeStep creates the harmonize step
func NewHarmonizeStep() *HarmonizeStep {
	return &HarmonizeStep{BaseStep: NewBaseStep(StepIDHarmonize, StepNameHarmonize)}
}

// Validate checks that both base labels were chosen
func (s *HarmonizeStep) Validate(state *RunState) error {
	if state.GetTable() == nil {
		return fmt.Errorf("no table to harmonize")
	}
	h := state.Options.Harmonize
	if h == nil || h.BaseRow == "" || h.BaseCol == "" {
		return &reshape.PivotConfigError{Field: "harmonize", Reason: "base row and base column are required"}
	}
	return nil
}

// Execute harmonizes the working table
func (s *HarmonizeStep) Execute(ctx context.Context, state *RunState) error {
	h := state.Options.Harmonize
	t, err := reshape.Harmonize(state.GetTable(), h.BaseRow, h.BaseCol)
	if err != nil {
		return err
	}
	state.Advance(t, PhaseHarmonized)
	return nil
}

// DropMissingStep removes rows and columns with no values
type DropMissingStep struct {
	BaseStep
}

// NewDropMissingStep creates the drop-missing step
func NewDropMissingStep() *DropMissingStep {
	return &DropMissingStep{BaseStep: NewBaseStep(StepIDDropMissing, StepNameDropMissing)}
}

// Validate checks that a table exists
func (s *DropMissingStep) Validate(state *RunState) error {
	if state.GetTable() == nil {
		return fmt.Errorf("no table to prune")
	}
	return nil
}

// Execute prunes the working table
func (s *DropMissingStep) Execute(ctx context.Context, state *RunState) error {
	state.Advance(reshape.DropMissing(state.GetTable()), PhaseReady)
	return nil
}
