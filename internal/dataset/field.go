package dataset

import (
	"fmt"
	"strings"
)

// Field identifies one column of the record schema
type Field int

const (
	FieldModel Field = iota
	FieldScenario
	FieldYear
	FieldSector
	FieldRegion
	FieldIndicator
	FieldUnit
	FieldValue
)

var fieldNames = [...]string{
	FieldModel:     "Model",
	FieldScenario:  "Scenario",
	FieldYear:      "Year",
	FieldSector:    "Sector",
	FieldRegion:    "Region",
	FieldIndicator: "Indicator",
	FieldUnit:      "Unit",
	FieldValue:     "Value",
}

// Fields lists the schema in file order
var Fields = []Field{
	FieldModel, FieldScenario, FieldYear, FieldSector,
	FieldRegion, FieldIndicator, FieldUnit, FieldValue,
}

// CategoricalFields are the string-valued fields that can be filtered by selection
var CategoricalFields = []Field{
	FieldModel, FieldScenario, FieldSector, FieldRegion, FieldIndicator, FieldUnit,
}

// String returns the canonical column name
func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldNames) {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

// Valid reports whether f is part of the schema
func (f Field) Valid() bool {
	return f >= FieldModel && f <= FieldValue
}

// IsNumeric reports whether the field holds numbers
func (f Field) IsNumeric() bool {
	return f == FieldYear || f == FieldValue
}

// IsCategorical reports whether the field holds categorical strings
func (f Field) IsCategorical() bool {
	return f.Valid() && !f.IsNumeric()
}

// MarshalText implements encoding.TextMarshaler
func (f Field) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid field %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (f *Field) UnmarshalText(text []byte) error {
	parsed, err := ParseField(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseField resolves a column name, ignoring case and surrounding spaces
func ParseField(name string) (Field, error) {
	trimmed := strings.TrimSpace(name)
	for i, n := range fieldNames {
		if strings.EqualFold(n, trimmed) {
			return Field(i), nil
		}
	}
	return -1, fmt.Errorf("unknown field %q", name)
}
