package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes the frame as CSV with a header row
func WriteCSV(w io.Writer, f *Frame, opts Options) error {
	// Write BOM if requested (helps Excel recognize UTF-8)
	if opts.CSVBOM {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(f.Names()); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, record := range textRows(f, opts.Precision) {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
