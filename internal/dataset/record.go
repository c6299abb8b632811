package dataset

import (
	"sort"
	"strconv"
)

// Record is one projection observation
type Record struct {
	Model     string `json:"model"`
	Scenario  string `json:"scenario"`
	Year      int    `json:"year"`
	Sector    string `json:"sector"`
	Region    string `json:"region"`
	Indicator string `json:"indicator"`
	Unit      string `json:"unit"`
	Value     Value  `json:"value"`
}

// Label returns the field rendered as a string, the form used for pivot axis labels
// and selection matching. A missing Value renders as "".
func (r Record) Label(f Field) string {
	switch f {
	case FieldModel:
		return r.Model
	case FieldScenario:
		return r.Scenario
	case FieldYear:
		return strconv.Itoa(r.Year)
	case FieldSector:
		return r.Sector
	case FieldRegion:
		return r.Region
	case FieldIndicator:
		return r.Indicator
	case FieldUnit:
		return r.Unit
	case FieldValue:
		return r.Value.String()
	}
	return ""
}

// Number returns the field as a number. Categorical fields are never numeric.
func (r Record) Number(f Field) Value {
	switch f {
	case FieldYear:
		return Some(float64(r.Year))
	case FieldValue:
		return r.Value
	}
	return Missing
}

// Has reports whether the field carries data for this record
func (r Record) Has(f Field) bool {
	switch f {
	case FieldYear:
		return true
	case FieldValue:
		return !r.Value.IsMissing()
	}
	return r.Label(f) != ""
}

// Dataset is the immutable record collection of a session
type Dataset struct {
	source  string
	records []Record
	uniques *Uniques
}

// New wraps records into a dataset and builds its uniques index.
// The slice is owned by the dataset afterwards.
func New(source string, records []Record) *Dataset {
	return &Dataset{
		source:  source,
		records: records,
		uniques: BuildUniques(records),
	}
}

// NewWithUniques wraps records with a prebuilt uniques index
func NewWithUniques(source string, records []Record, uniques *Uniques) *Dataset {
	if uniques == nil {
		uniques = BuildUniques(records)
	}
	return &Dataset{source: source, records: records, uniques: uniques}
}

// Source returns where the records were loaded from
func (d *Dataset) Source() string { return d.source }

// Len returns the number of records
func (d *Dataset) Len() int { return len(d.records) }

// Records returns the records in load order. The returned slice has its capacity
// clipped so appends by a caller never write into the dataset.
func (d *Dataset) Records() []Record {
	return d.records[:len(d.records):len(d.records)]
}

// At returns the i-th record
func (d *Dataset) At(i int) Record { return d.records[i] }

// Uniques returns the uniques index
func (d *Dataset) Uniques() *Uniques { return d.uniques }

// Models returns the distinct model names, sorted
func (d *Dataset) Models() []string {
	return d.uniques.Values(FieldModel, AllModels)
}

// Years returns the distinct years, ascending
func (d *Dataset) Years() []int {
	seen := make(map[int]struct{})
	for _, r := range d.records {
		seen[r.Year] = struct{}{}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
