package reshape

import (
	"fmt"
	"strings"
)

// IndexOptions rebases the table to a reference row or column
type IndexOptions struct {
	Reference string
	OnRow     bool
}

// HarmonizeOptions anchors every column to BaseCol at BaseRow
type HarmonizeOptions struct {
	BaseRow string
	BaseCol string
}

// Options describes one pipeline run from pivot to drop-missing
type Options struct {
	Pivot     PivotSpec
	Fill      FillMethod
	Index     *IndexOptions
	Harmonize *HarmonizeOptions
}

// Validate checks the settings that can be checked without data
func (o Options) Validate() error {
	if err := o.Pivot.Validate(); err != nil {
		return err
	}
	if o.Fill != "" {
		if _, err := ParseFillMethod(string(o.Fill)); err != nil {
			return err
		}
	}
	if o.Index != nil && o.Index.Reference == "" {
		return &PivotConfigError{Field: "index", Reason: "reference label is required"}
	}
	if o.Harmonize != nil && (o.Harmonize.BaseRow == "" || o.Harmonize.BaseCol == "") {
		return &PivotConfigError{Field: "harmonize", Reason: "base row and base column are required"}
	}
	return nil
}

// Title assembles a human readable title from the settings, e.g.
// "Value (sum) by Year and Model, indexed to 2000 = 100, harmonized to M1 at 2000".
func (o Options) Title() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) by %s and %s", o.Pivot.Value, o.aggregation(), o.Pivot.Row, o.Pivot.Col)
	if o.Fill != "" && o.Fill != FillNone {
		fmt.Fprintf(&b, ", %s fill", o.Fill)
	}
	if o.Index != nil {
		axis := o.Pivot.Col
		if o.Index.OnRow {
			axis = o.Pivot.Row
		}
		fmt.Fprintf(&b, ", indexed to %s %s = 100", axis, o.Index.Reference)
	}
	if o.Harmonize != nil {
		fmt.Fprintf(&b, ", harmonized to %s at %s", o.Harmonize.BaseCol, o.Harmonize.BaseRow)
	}
	return b.String()
}

// AxisFlags reports whether the X axis (row labels) and the Y axis (column
// labels) hold numeric values, which renderers use for tick formatting
func (o Options) AxisFlags() (xNumeric, yNumeric bool) {
	return o.Pivot.Row.IsNumeric(), o.Pivot.Col.IsNumeric()
}

func (o Options) aggregation() Aggregation {
	if o.Pivot.Agg == "" {
		return AggSum
	}
	return o.Pivot.Agg
}
