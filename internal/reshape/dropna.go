package reshape

// DropMissing returns a copy of t without the rows, then the columns, whose cells are all missing
func DropMissing(t *Table) *Table {
	var keepRows []int
	for i := range t.rows {
		for j := range t.cols {
			if !t.At(i, j).IsMissing() {
				keepRows = append(keepRows, i)
				break
			}
		}
	}

	var keepCols []int
	for j := range t.cols {
		for _, i := range keepRows {
			if !t.At(i, j).IsMissing() {
				keepCols = append(keepCols, j)
				break
			}
		}
	}

	rows := make([]string, len(keepRows))
	for k, i := range keepRows {
		rows[k] = t.rows[i]
	}
	cols := make([]string, len(keepCols))
	for k, j := range keepCols {
		cols[k] = t.cols[j]
	}

	out := NewTable(t.rowField, t.colField, rows, cols)
	for ni, i := range keepRows {
		for nj, j := range keepCols {
			out.Set(ni, nj, t.At(i, j))
		}
	}
	return out
}
