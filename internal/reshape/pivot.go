package reshape

import (
	"fmt"
	"strings"

	"agmipx/internal/dataset"
)

// Aggregation combines the values that land in one pivot cell
type Aggregation string

const (
	AggSum   Aggregation = "sum"
	AggMean  Aggregation = "mean"
	AggCount Aggregation = "count"
	// AggNone keeps the last value in input order when a cell has several rows
	AggNone Aggregation = "none"
)

// Aggregations lists the supported aggregation functions
var Aggregations = []Aggregation{AggSum, AggMean, AggCount, AggNone}

// ParseAggregation reads an aggregation name; the empty string means sum
func ParseAggregation(s string) (Aggregation, error) {
	switch a := Aggregation(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return AggSum, nil
	case AggSum, AggMean, AggCount, AggNone:
		return a, nil
	case "passthrough":
		return AggNone, nil
	}
	return "", &PivotConfigError{Field: "aggregation", Reason: fmt.Sprintf("unknown aggregation %q", s)}
}

// PivotSpec names the axes, the aggregated field and the aggregation
type PivotSpec struct {
	Row   dataset.Field
	Col   dataset.Field
	Value dataset.Field
	Agg   Aggregation
}

// Validate checks the axis and value field combination
func (s PivotSpec) Validate() error {
	for _, f := range []dataset.Field{s.Row, s.Col, s.Value} {
		if !f.Valid() {
			return &PivotConfigError{Field: f.String(), Reason: "unknown field"}
		}
	}
	switch {
	case s.Row == s.Col:
		return &PivotConfigError{Field: s.Row.String(), Reason: "row and column axes must differ"}
	case s.Row == dataset.FieldValue || s.Col == dataset.FieldValue:
		return &PivotConfigError{Field: dataset.FieldValue.String(), Reason: "Value cannot be a pivot axis"}
	case s.Row == s.Value || s.Col == s.Value:
		return &PivotConfigError{Field: s.Value.String(), Reason: "value field cannot also be an axis"}
	}
	switch s.Agg {
	case AggSum, AggMean, AggNone, "":
		if !s.Value.IsNumeric() {
			return &PivotConfigError{Field: s.Value.String(), Reason: "aggregation needs a numeric value field"}
		}
	case AggCount:
	default:
		return &PivotConfigError{Field: "aggregation", Reason: fmt.Sprintf("unknown aggregation %q", s.Agg)}
	}
	return nil
}

// Pivot reshapes records into a table keyed by the distinct row and column labels
// present in the input, sorted per field. Cells without contributing rows are missing.
func Pivot(records []dataset.Record, spec PivotSpec) (*Table, error) {
	if spec.Agg == "" {
		spec.Agg = AggSum
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	rows := distinctLabels(records, spec.Row)
	cols := distinctLabels(records, spec.Col)
	t := NewTable(spec.Row, spec.Col, rows, cols)

	sums := make([]float64, len(t.cells))
	counts := make([]int, len(t.cells))
	for _, r := range records {
		i := t.rowIndex[r.Label(spec.Row)]
		j := t.colIndex[r.Label(spec.Col)]
		k := i*len(cols) + j

		if spec.Agg == AggCount {
			if r.Has(spec.Value) {
				counts[k]++
			}
			continue
		}
		v, ok := r.Number(spec.Value).Get()
		if !ok {
			continue
		}
		counts[k]++
		switch spec.Agg {
		case AggSum, AggMean:
			sums[k] += v
		case AggNone:
			sums[k] = v
		}
	}

	for k, n := range counts {
		if n == 0 {
			continue
		}
		switch spec.Agg {
		case AggCount:
			t.cells[k] = dataset.Some(float64(n))
		case AggMean:
			t.cells[k] = dataset.Some(sums[k] / float64(n))
		default:
			t.cells[k] = dataset.Some(sums[k])
		}
	}
	return t, nil
}

func distinctLabels(records []dataset.Record, f dataset.Field) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range records {
		l := r.Label(f)
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	dataset.SortLabels(f, out)
	return out
}
