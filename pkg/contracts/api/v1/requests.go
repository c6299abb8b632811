// Package api contains the request and response bodies of the explorer's
// HTTP API. Version v1 is the current stable API version.
//
// Validation tags use the explorer's custom validators: agmip_field,
// agmip_category, aggregation, fill_method and export_format.
package api

// SearchRequest selects records. Selections map a categorical field name to
// the accepted values; an absent field or one containing "(All)" matches
// everything. Years and the year range are mutually exclusive.
type SearchRequest struct {
	Selections map[string][]string `json:"selections,omitempty" validate:"omitempty,dive,keys,agmip_category,endkeys"`
	Years      []int               `json:"years,omitempty" validate:"excluded_with=YearFrom"`
	YearFrom   *int                `json:"year_from,omitempty" validate:"required_with=YearTo"`
	YearTo     *int                `json:"year_to,omitempty" validate:"required_with=YearFrom"`
	// Limit caps the preview rows in the response; 0 uses the configured default
	Limit int `json:"limit,omitempty" validate:"min=0"`
}

// PivotRequest configures one reshape run over the current search result. A
// preset other than "Custom" overrides Row, Col, Value and Aggregation.
type PivotRequest struct {
	Preset      string            `json:"preset,omitempty"`
	Row         string            `json:"row,omitempty" validate:"required_without=Preset,omitempty,agmip_field"`
	Col         string            `json:"col,omitempty" validate:"required_without=Preset,omitempty,agmip_field"`
	Value       string            `json:"value,omitempty" validate:"omitempty,agmip_field"`
	Aggregation string            `json:"aggregation,omitempty" validate:"omitempty,aggregation"`
	Fill        string            `json:"fill,omitempty" validate:"omitempty,fill_method"`
	Index       *IndexRequest     `json:"index,omitempty"`
	Harmonize   *HarmonizeRequest `json:"harmonize,omitempty"`
}

// IndexRequest rebases the table so the reference row or column reads 100
type IndexRequest struct {
	Reference string `json:"reference" validate:"required"`
	Axis      string `json:"axis,omitempty" validate:"omitempty,oneof=row col"`
}

// HarmonizeRequest anchors every column to BaseCol at BaseRow
type HarmonizeRequest struct {
	BaseRow string `json:"base_row" validate:"required"`
	BaseCol string `json:"base_col" validate:"required"`
}

// ExportRequest is read from the export route's path parameters
type ExportRequest struct {
	Target string `json:"target" validate:"required,oneof=results pivot"`
	Format string `json:"format" validate:"required,export_format"`
}

// UniquesRequest asks for the distinct values of a field, narrowed to models
type UniquesRequest struct {
	Field  string   `json:"field" validate:"required,agmip_category"`
	Models []string `json:"models,omitempty"`
}
