package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for data files that are neither CSV nor XLSX
var ErrUnsupportedFormat = errors.New("unsupported dataset format")

// ParseError reports a malformed data row
type ParseError struct {
	Line  int
	Field Field
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: field %s: %v", e.Line, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Loader reads datasets from disk
type Loader struct {
	logger   *slog.Logger
	useCache bool
}

// NewLoader creates a loader. With useCache the uniques index is read from (and
// written to) a cache file next to the data file.
func NewLoader(logger *slog.Logger, useCache bool) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		logger:   logger.With(slog.String("component", "dataset_loader")),
		useCache: useCache,
	}
}

// Load reads a CSV or XLSX file into a Dataset
func (l *Loader) Load(ctx context.Context, path string) (*Dataset, error) {
	var (
		records []Record
		err     error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		records, err = l.loadCSV(path)
	case ".xlsx", ".xlsm":
		records, err = l.loadXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", path, err)
	}

	l.logger.InfoContext(ctx, "dataset loaded",
		slog.String("path", path),
		slog.Int("records", len(records)))

	if !l.useCache {
		return New(path, records), nil
	}

	cachePath := CachePath(path)
	if uniques, err := ReadUniquesCache(cachePath, path); err == nil {
		l.logger.DebugContext(ctx, "uniques cache hit", slog.String("cache", cachePath))
		return NewWithUniques(path, records, uniques), nil
	} else if !errors.Is(err, os.ErrNotExist) && !errors.Is(err, ErrStaleCache) {
		l.logger.WarnContext(ctx, "ignoring unreadable uniques cache",
			slog.String("cache", cachePath),
			slog.String("error", err.Error()))
	}

	ds := New(path, records)
	if err := WriteUniquesCacheFor(cachePath, path, ds.Uniques()); err != nil {
		l.logger.WarnContext(ctx, "failed to write uniques cache",
			slog.String("cache", cachePath),
			slog.String("error", err.Error()))
	}
	return ds, nil
}

func (l *Loader) loadCSV(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadCSV(file)
}

// ReadCSV parses records from CSV text with a header row naming the schema fields.
// Column order is free and extra columns are ignored.
func ReadCSV(r io.Reader) ([]Record, error) {
	br := bufio.NewReader(r)
	// Skip a UTF-8 BOM written by spreadsheet tools
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var records []Record
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if isBlank(row) {
			continue
		}
		rec, err := parseRow(row, columns, line)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (l *Loader) loadXLSX(path string) ([]Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	l.logger.Debug("reading workbook sheet",
		slog.String("sheet", sheets[0]),
		slog.Int("rows", len(rows)))
	return parseRows(rows)
}

// parseRows parses a header row followed by data rows
func parseRows(rows [][]string) ([]Record, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty sheet")
	}
	columns, err := mapColumns(rows[0])
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		rec, err := parseRow(row, columns, i+2)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// mapColumns finds the position of every schema field in the header
func mapColumns(header []string) ([]int, error) {
	columns := make([]int, len(Fields))
	for i := range columns {
		columns[i] = -1
	}
	for pos, name := range header {
		f, err := ParseField(name)
		if err != nil {
			continue
		}
		if columns[f] == -1 {
			columns[f] = pos
		}
	}
	var missing []string
	for _, f := range Fields {
		if columns[f] == -1 {
			missing = append(missing, f.String())
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("header is missing columns: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

func parseRow(row []string, columns []int, line int) (Record, error) {
	cell := func(f Field) string {
		pos := columns[f]
		if pos >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[pos])
	}
	label := func(f Field) string { return CleanLabel(cell(f)) }

	year, err := parseYear(cell(FieldYear))
	if err != nil {
		return Record{}, &ParseError{Line: line, Field: FieldYear, Err: err}
	}
	value, err := ParseValue(cell(FieldValue))
	if err != nil {
		return Record{}, &ParseError{Line: line, Field: FieldValue, Err: err}
	}

	return Record{
		Model:     label(FieldModel),
		Scenario:  label(FieldScenario),
		Year:      year,
		Sector:    label(FieldSector),
		Region:    label(FieldRegion),
		Indicator: label(FieldIndicator),
		Unit:      label(FieldUnit),
		Value:     value,
	}, nil
}

// parseYear accepts integers and integral floats such as "2010.0"
func parseYear(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("year is empty")
	}
	if y, err := strconv.Atoi(s); err == nil {
		return y, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	return int(f), nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
