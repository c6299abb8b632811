package reshape

import (
	"strconv"

	"agmipx/internal/dataset"
)

// Table is a pivot table stored as a dense row-major matrix
type Table struct {
	rowField dataset.Field
	colField dataset.Field
	rows     []string
	cols     []string
	rowIndex map[string]int
	colIndex map[string]int
	cells    []dataset.Value
}

// NewTable creates a table with every cell missing. Labels must be distinct.
func NewTable(rowField, colField dataset.Field, rows, cols []string) *Table {
	t := &Table{
		rowField: rowField,
		colField: colField,
		rows:     append([]string(nil), rows...),
		cols:     append([]string(nil), cols...),
		rowIndex: make(map[string]int, len(rows)),
		colIndex: make(map[string]int, len(cols)),
		cells:    make([]dataset.Value, len(rows)*len(cols)),
	}
	for i, r := range t.rows {
		t.rowIndex[r] = i
	}
	for j, c := range t.cols {
		t.colIndex[c] = j
	}
	return t
}

// RowField returns the field whose values label the rows
func (t *Table) RowField() dataset.Field { return t.rowField }

// ColField returns the field whose values label the columns
func (t *Table) ColField() dataset.Field { return t.colField }

// Rows returns the row labels in order
func (t *Table) Rows() []string { return append([]string(nil), t.rows...) }

// Cols returns the column labels in order
func (t *Table) Cols() []string { return append([]string(nil), t.cols...) }

// NumRows returns the number of rows
func (t *Table) NumRows() int { return len(t.rows) }

// NumCols returns the number of columns
func (t *Table) NumCols() int { return len(t.cols) }

// RowIndex returns the offset of a row label
func (t *Table) RowIndex(label string) (int, bool) {
	i, ok := t.rowIndex[label]
	return i, ok
}

// ColIndex returns the offset of a column label
func (t *Table) ColIndex(label string) (int, bool) {
	j, ok := t.colIndex[label]
	return j, ok
}

// At returns the cell at row i, column j
func (t *Table) At(i, j int) dataset.Value {
	return t.cells[i*len(t.cols)+j]
}

// Set stores v at row i, column j
func (t *Table) Set(i, j int, v dataset.Value) {
	t.cells[i*len(t.cols)+j] = v
}

// Get returns the cell addressed by labels; unknown labels read as missing
func (t *Table) Get(row, col string) dataset.Value {
	i, ok := t.rowIndex[row]
	if !ok {
		return dataset.Missing
	}
	j, ok := t.colIndex[col]
	if !ok {
		return dataset.Missing
	}
	return t.At(i, j)
}

// Column returns a copy of column j in row order
func (t *Table) Column(j int) []dataset.Value {
	out := make([]dataset.Value, len(t.rows))
	for i := range t.rows {
		out[i] = t.At(i, j)
	}
	return out
}

// Clone returns a deep copy. Label maps are shared since they are never written after construction.
func (t *Table) Clone() *Table {
	out := *t
	out.rows = append([]string(nil), t.rows...)
	out.cols = append([]string(nil), t.cols...)
	out.cells = append([]dataset.Value(nil), t.cells...)
	return &out
}

// MissingCount returns the number of missing cells
func (t *Table) MissingCount() int {
	n := 0
	for _, v := range t.cells {
		if v.IsMissing() {
			n++
		}
	}
	return n
}

// Equal reports whether both tables have the same axes, labels and cells
func (t *Table) Equal(o *Table) bool {
	if t.rowField != o.rowField || t.colField != o.colField ||
		len(t.rows) != len(o.rows) || len(t.cols) != len(o.cols) {
		return false
	}
	for i := range t.rows {
		if t.rows[i] != o.rows[i] {
			return false
		}
	}
	for j := range t.cols {
		if t.cols[j] != o.cols[j] {
			return false
		}
	}
	for k := range t.cells {
		if !t.cells[k].Equal(o.cells[k]) {
			return false
		}
	}
	return true
}

// numericRows returns the row labels parsed as numbers. It reports false unless
// every label parses and the labels are strictly increasing.
func (t *Table) numericRows() ([]float64, bool) {
	xs := make([]float64, len(t.rows))
	for i, r := range t.rows {
		f, err := strconv.ParseFloat(r, 64)
		if err != nil || (i > 0 && f <= xs[i-1]) {
			return nil, false
		}
		xs[i] = f
	}
	return xs, true
}
