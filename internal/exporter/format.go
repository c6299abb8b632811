package exporter

import (
	"strconv"

	"agmipx/internal/dataset"
)

// formatFloat renders f with the given number of decimals; negative means shortest exact form
func formatFloat(f float64, precision int) string {
	if precision < 0 {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', precision, 64)
}

// formatValue renders v, with missing as ""
func formatValue(v dataset.Value, precision int) string {
	f, ok := v.Get()
	if !ok {
		return ""
	}
	return formatFloat(f, precision)
}

// formatInt formats an int64 value for text output
func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}

// textCell renders row i of column c for text formats
func textCell(c Column, i, precision int) string {
	switch c.Kind {
	case KindInteger:
		return formatInt(c.Ints[i])
	case KindNumber:
		return formatValue(c.Numbers[i], precision)
	default:
		return c.Strings[i]
	}
}

// textRows renders the whole frame for text formats
func textRows(f *Frame, precision int) [][]string {
	n := f.NumRows()
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		row := make([]string, len(f.Columns))
		for j, c := range f.Columns {
			row[j] = textCell(c, i, precision)
		}
		rows[i] = row
	}
	return rows
}
