package reshape

import (
	"agmipx/internal/dataset"
)

// Index rebases t so the reference row (onRow) or column becomes 100. Each cell
// is divided by the reference cell on its column (or row) and scaled by 100; a
// missing or zero reference leaves that column (or row) missing.
func Index(t *Table, reference string, onRow bool) (*Table, error) {
	out := t.Clone()
	if onRow {
		ref, ok := t.RowIndex(reference)
		if !ok {
			return nil, &PivotConfigError{Field: t.rowField.String(), Reason: "unknown index reference " + quote(reference)}
		}
		for j := range t.cols {
			base := t.At(ref, j)
			for i := range t.rows {
				out.Set(i, j, rebase(t.At(i, j), base, i == ref))
			}
		}
		return out, nil
	}

	ref, ok := t.ColIndex(reference)
	if !ok {
		return nil, &PivotConfigError{Field: t.colField.String(), Reason: "unknown index reference " + quote(reference)}
	}
	for i := range t.rows {
		base := t.At(i, ref)
		for j := range t.cols {
			out.Set(i, j, rebase(t.At(i, j), base, j == ref))
		}
	}
	return out, nil
}

// rebase returns v/base*100. The reference cell itself is pinned to exactly 100.
func rebase(v, base dataset.Value, isRef bool) dataset.Value {
	scaled := v.Div(base).Scale(100)
	if isRef && !scaled.IsMissing() {
		return dataset.Some(100)
	}
	return scaled
}
