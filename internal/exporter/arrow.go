package exporter

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"
)

// arrowSchema maps the frame's columns to Arrow fields; numeric value
// columns are nullable, the rest are not
func arrowSchema(f *Frame) *arrow.Schema {
	fields := make([]arrow.Field, len(f.Columns))
	for j, c := range f.Columns {
		switch c.Kind {
		case KindInteger:
			fields[j] = arrow.Field{Name: c.Name, Type: arrow.PrimitiveTypes.Int64}
		case KindNumber:
			fields[j] = arrow.Field{Name: c.Name, Type: arrow.PrimitiveTypes.Float64, Nullable: true}
		default:
			fields[j] = arrow.Field{Name: c.Name, Type: arrow.BinaryTypes.String}
		}
	}
	var md *arrow.Metadata
	if f.Title != "" {
		m := arrow.NewMetadata([]string{"title"}, []string{f.Title})
		md = &m
	}
	return arrow.NewSchema(fields, md)
}

// WriteArrow writes the frame as an Arrow IPC file holding one record batch
func WriteArrow(w io.Writer, f *Frame) error {
	mem := memory.NewGoAllocator()
	schema := arrowSchema(f)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for j, c := range f.Columns {
		switch c.Kind {
		case KindInteger:
			b.Field(j).(*array.Int64Builder).AppendValues(c.Ints, nil)
		case KindNumber:
			fb := b.Field(j).(*array.Float64Builder)
			fb.Reserve(len(c.Numbers))
			for _, v := range c.Numbers {
				if x, ok := v.Get(); ok {
					fb.Append(x)
				} else {
					fb.AppendNull()
				}
			}
		default:
			b.Field(j).(*array.StringBuilder).AppendValues(c.Strings, nil)
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("failed to open arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("failed to write arrow record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close arrow writer: %w", err)
	}
	return nil
}
