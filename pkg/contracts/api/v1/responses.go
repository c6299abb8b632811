package api

import "time"

// DatasetInfo describes the loaded dataset
type DatasetInfo struct {
	Source   string    `json:"source"`
	Records  int       `json:"records"`
	Fields   []string  `json:"fields"`
	Models   []string  `json:"models"`
	Years    []int     `json:"years"`
	LoadedAt time.Time `json:"loaded_at"`
}

// UniquesResponse lists the selectable values of a field
type UniquesResponse struct {
	Field  string   `json:"field"`
	Models []string `json:"models,omitempty"`
	Values []string `json:"values"`
}

// Preset describes a canned pivot layout
type Preset struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Row         string `json:"row,omitempty"`
	Col         string `json:"col,omitempty"`
	Harmonize   bool   `json:"harmonize"`
}

// Record is one row of a search result; a missing value is null
type Record struct {
	Model     string   `json:"model"`
	Scenario  string   `json:"scenario"`
	Year      int      `json:"year"`
	Sector    string   `json:"sector"`
	Region    string   `json:"region"`
	Indicator string   `json:"indicator"`
	Unit      string   `json:"unit"`
	Value     *float64 `json:"value"`
}

// SearchResponse reports the matched count and a preview of the records
type SearchResponse struct {
	Criteria string   `json:"criteria"`
	Total    int      `json:"total"`
	Shown    int      `json:"shown"`
	Records  []Record `json:"records"`
}

// StepSummary reports how one pipeline step went
type StepSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Message    string `json:"message,omitempty"`
}

// PivotResponse carries the reshaped table. Data is row-major with null for
// missing cells.
type PivotResponse struct {
	RunID    string        `json:"run_id"`
	Title    string        `json:"title"`
	RowField string        `json:"row_field"`
	ColField string        `json:"col_field"`
	XNumeric bool          `json:"x_numeric"`
	YNumeric bool          `json:"y_numeric"`
	Rows     []string      `json:"rows"`
	Cols     []string      `json:"cols"`
	Data     [][]*float64  `json:"data"`
	Steps    []StepSummary `json:"steps"`
}

// SessionStatus reports where the explorer session stands
type SessionStatus struct {
	Phase     string `json:"phase"`
	Busy      bool   `json:"busy"`
	RunID     string `json:"run_id,omitempty"`
	Results   int    `json:"results"`
	HasOutput bool   `json:"has_output"`
}
