package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Data"

// WriteXLSX writes the frame as a single-sheet workbook. Missing cells stay empty.
func WriteXLSX(w io.Writer, f *Frame) error {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for j, name := range f.Names() {
		if err := setCell(book, j, 0, name); err != nil {
			return err
		}
	}
	n := f.NumRows()
	for i := 0; i < n; i++ {
		for j := range f.Columns {
			v := f.Cell(i, j)
			if v == nil {
				continue
			}
			if err := setCell(book, j, i+1, v); err != nil {
				return err
			}
		}
	}

	if f.Title != "" {
		if err := book.SetDocProps(&excelize.DocProperties{Title: f.Title}); err != nil {
			return fmt.Errorf("failed to set workbook title: %w", err)
		}
	}

	if err := book.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// setCell writes v at zero-based column col and row row
func setCell(book *excelize.File, col, row int, v interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return fmt.Errorf("failed to resolve cell: %w", err)
	}
	if err := book.SetCellValue(xlsxSheet, cell, v); err != nil {
		return fmt.Errorf("failed to set cell %s: %w", cell, err)
	}
	return nil
}
