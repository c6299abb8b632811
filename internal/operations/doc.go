// Package operations runs the reshape pipeline and keeps the explorer's
// session state.
//
// A run walks a fixed sequence of steps over the current search result:
//
//	pivot -> fill -> index -> harmonize -> dropna
//
// Fill, index and harmonize only run when requested; the others always run.
// The Manager checks for cancellation between steps, attributes any failure
// to the step that raised it and marks the remaining steps skipped.
//
// Core Components:
//
// Session: the state machine Idle -> Queried -> ... -> Ready. Search moves
// to Queried (or back to Idle on failure). Run always starts over from the
// search result and either reaches Ready or falls back to Queried.
//
// Manager: executes the steps of a Registry in order, recording spans and
// metrics through PipelineTracer and progress through StatusBroadcaster.
//
// Step: one transformation of the working table held by RunState.
//
// Example usage:
//
//	engine := query.NewEngine(ds, logger)
//	manager := operations.NewManager(nil, logger, operations.WithBroadcaster(b))
//	session := operations.NewSession(engine, manager, logger)
//
//	if _, err := session.Search(ctx, criteria); err != nil {
//		return err
//	}
//	out, err := session.Run(ctx, reshape.Options{
//		Pivot: reshape.PivotSpec{Row: dataset.FieldYear, Col: dataset.FieldModel, Value: dataset.FieldValue},
//		Fill:  reshape.FillLinear,
//	})
package operations
