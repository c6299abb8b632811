// Package reshape turns a flat record subset into a two-dimensional pivot table
// and normalizes it.
//
// # Pipeline
//
// Every stage takes a *Table and returns a new one; inputs are never mutated:
//
//	Pivot → Fill → Index → Harmonize → DropMissing
//
// Fill, Index and Harmonize are optional. DropMissing removes rows and columns
// that are entirely missing and is always applied last.
//
// # Missing values
//
// Cells hold a dataset.Value. A cell with no contributing rows is missing, never
// zero. Division by a missing or zero divisor yields missing instead of an error,
// so Index and Harmonize propagate gaps rather than failing.
//
// # Layout
//
// A Table is a dense row-major matrix with label→offset maps built once per
// pivot, so the normalization passes are O(rows×cols) without label lookups.
package reshape
