package exporter

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

type jsonFrame struct {
	Title   string          `json:"title,omitempty"`
	Columns []string        `json:"columns"`
	Data    [][]interface{} `json:"data"`
}

// WriteJSON writes the frame in split orientation; missing cells are null
func WriteJSON(w io.Writer, f *Frame) error {
	out := jsonFrame{
		Title:   f.Title,
		Columns: f.Names(),
		Data:    make([][]interface{}, f.NumRows()),
	}
	for i := range out.Data {
		row := make([]interface{}, len(f.Columns))
		for j := range f.Columns {
			row[j] = f.Cell(i, j)
		}
		out.Data[i] = row
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}
