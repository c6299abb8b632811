// Package dataset owns the scenario projection records loaded for an exploration session.
//
// A Dataset is loaded once (CSV or XLSX) and is read-only afterwards. Alongside it the
// package builds a Uniques index: for every categorical field, the distinct values observed
// per model and across all models. The index drives cascading selection choices; it can be
// cached next to the data file so later sessions skip the scan.
//
// # Fields
//
// Field is a closed enumeration of the record schema. Code that picks a field at runtime
// (pivot axes, filters) goes through ParseField and Record.Label rather than string lookups:
//
//	f, err := dataset.ParseField("Scenario")
//	label := rec.Label(f)
//
// # Missing values
//
// Value is a tri-state number: present with a float64, or missing. Arithmetic helpers on
// Value propagate missing operands and never yield NaN or Inf.
package dataset
