// Package exporter writes search results and pivot tables to download formats.
//
// Both kinds of result are first flattened into a Frame, an ordered list of
// typed columns. Each format then renders the Frame:
//
//	csv      delimited text, optional UTF-8 BOM for spreadsheet tools
//	json     {"columns": [...], "data": [[...], ...]} with null for missing cells
//	html     a standalone page holding one table
//	xlsx     a single-sheet workbook
//	arrow    an Arrow IPC file
//	msgpack  a MessagePack blob that Decode reads back into a Frame
//
// Text formats (csv, html) round numbers to Options.Precision decimals;
// the others keep full precision.
//
// Example usage:
//
//	exp := exporter.New(paths, exporter.Options{Precision: 2, CSVBOM: true}, logger)
//	frame := exporter.FromTable(out.Table, out.Title)
//	path, err := exp.Save(ctx, frame, exporter.FormatXLSX)
package exporter
