package exporter

import (
	"agmipx/internal/dataset"
	"agmipx/internal/reshape"
)

// Kind is the storage type of a Frame column
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindNumber
)

// Column is one named column of a Frame. Only the slice matching Kind is set.
type Column struct {
	Name    string
	Kind    Kind
	Strings []string
	Ints    []int64
	Numbers []dataset.Value
}

// Frame is a rectangular, typed view of a result ready for export
type Frame struct {
	Title   string
	Columns []Column
}

// NumRows returns the number of rows
func (f *Frame) NumRows() int {
	if f == nil || len(f.Columns) == 0 {
		return 0
	}
	c := f.Columns[0]
	switch c.Kind {
	case KindInteger:
		return len(c.Ints)
	case KindNumber:
		return len(c.Numbers)
	default:
		return len(c.Strings)
	}
}

// Names returns the column names in order
func (f *Frame) Names() []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name
	}
	return names
}

// Cell returns the value at row i of column j as string, int64, float64 or nil
func (f *Frame) Cell(i, j int) interface{} {
	c := f.Columns[j]
	switch c.Kind {
	case KindInteger:
		return c.Ints[i]
	case KindNumber:
		if v, ok := c.Numbers[i].Get(); ok {
			return v
		}
		return nil
	default:
		return c.Strings[i]
	}
}

// FromTable flattens a pivot table: the row labels become the first column,
// named after the row field, followed by one numeric column per column label.
func FromTable(t *reshape.Table, title string) *Frame {
	rows := t.Rows()
	f := &Frame{Title: title, Columns: make([]Column, 0, t.NumCols()+1)}
	f.Columns = append(f.Columns, Column{
		Name:    t.RowField().String(),
		Kind:    KindString,
		Strings: rows,
	})
	for j, name := range t.Cols() {
		f.Columns = append(f.Columns, Column{
			Name:    name,
			Kind:    KindNumber,
			Numbers: t.Column(j),
		})
	}
	return f
}

// FromRecords lays out records in schema order
func FromRecords(records []dataset.Record, title string) *Frame {
	f := &Frame{Title: title, Columns: make([]Column, 0, len(dataset.Fields))}
	for _, field := range dataset.Fields {
		col := Column{Name: field.String()}
		switch field {
		case dataset.FieldYear:
			col.Kind = KindInteger
			col.Ints = make([]int64, len(records))
			for i, r := range records {
				col.Ints[i] = int64(r.Year)
			}
		case dataset.FieldValue:
			col.Kind = KindNumber
			col.Numbers = make([]dataset.Value, len(records))
			for i, r := range records {
				col.Numbers[i] = r.Value
			}
		default:
			col.Strings = make([]string, len(records))
			for i, r := range records {
				col.Strings[i] = r.Label(field)
			}
		}
		f.Columns = append(f.Columns, col)
	}
	return f
}
