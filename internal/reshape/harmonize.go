package reshape

import (
	"strconv"

	"agmipx/internal/dataset"
)

// Harmonize rescales every column so it agrees with baseCol at baseRow while
// keeping each column's shape across rows.
//
// Pass one computes multiplier[r][c] = t[r][c] / t[baseRow][c]; pass two sets
// each cell to t[baseRow][baseCol] * multiplier[r][c]. A column whose base-row
// cell is missing or zero becomes missing.
func Harmonize(t *Table, baseRow, baseCol string) (*Table, error) {
	br, ok := t.RowIndex(baseRow)
	if !ok {
		return nil, &PivotConfigError{Field: t.rowField.String(), Reason: "unknown harmonize base row " + quote(baseRow)}
	}
	bc, ok := t.ColIndex(baseCol)
	if !ok {
		return nil, &PivotConfigError{Field: t.colField.String(), Reason: "unknown harmonize base column " + quote(baseCol)}
	}

	nr, nc := t.NumRows(), t.NumCols()
	multiplier := make([]dataset.Value, nr*nc)
	for j := 0; j < nc; j++ {
		base := t.At(br, j)
		for i := 0; i < nr; i++ {
			multiplier[i*nc+j] = t.At(i, j).Div(base)
		}
	}

	anchor := t.At(br, bc)
	out := t.Clone()
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			if i == br && j == bc {
				out.Set(i, j, anchor)
				continue
			}
			out.Set(i, j, anchor.Mul(multiplier[i*nc+j]))
		}
	}
	return out, nil
}

func quote(s string) string { return strconv.Quote(s) }
