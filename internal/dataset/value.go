package dataset

import (
	"math"
	"strconv"
	"strings"
)

// Value is a number that may be missing. The zero Value is missing.
type Value struct {
	v  float64
	ok bool
}

// Missing is the missing value
var Missing = Value{}

// Some wraps a present number. NaN and infinities are treated as missing.
func Some(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Missing
	}
	return Value{v: f, ok: true}
}

// Get returns the number and whether it is present
func (x Value) Get() (float64, bool) {
	return x.v, x.ok
}

// Float returns the number, or 0 when missing
func (x Value) Float() float64 {
	return x.v
}

func (x Value) IsMissing() bool { return !x.ok }

// Add returns x + y, missing if either operand is
func (x Value) Add(y Value) Value {
	if !x.ok || !y.ok {
		return Missing
	}
	return Some(x.v + y.v)
}

// Mul returns x * y, missing if either operand is
func (x Value) Mul(y Value) Value {
	if !x.ok || !y.ok {
		return Missing
	}
	return Some(x.v * y.v)
}

// Div returns x / y. A missing operand or a zero divisor gives a missing result.
func (x Value) Div(y Value) Value {
	if !x.ok || !y.ok || y.v == 0 {
		return Missing
	}
	return Some(x.v / y.v)
}

// Scale returns x * k
func (x Value) Scale(k float64) Value {
	if !x.ok {
		return Missing
	}
	return Some(x.v * k)
}

// Equal reports whether both values are missing or both hold the same number
func (x Value) Equal(y Value) bool {
	if x.ok != y.ok {
		return false
	}
	return !x.ok || x.v == y.v
}

// String formats the number with the shortest representation, or "" when missing
func (x Value) String() string {
	if !x.ok {
		return ""
	}
	return strconv.FormatFloat(x.v, 'g', -1, 64)
}

// missingLabels are the spellings read as missing in categorical columns
var missingLabels = map[string]bool{
	"": true, "NA": true, "N/A": true, "n/a": true, "#N/A": true, "<NA>": true,
	"NaN": true, "nan": true, "-NaN": true, "-nan": true,
	"NULL": true, "null": true, "None": true,
}

// CleanLabel trims a categorical cell and maps missing spellings to ""
func CleanLabel(s string) string {
	t := strings.TrimSpace(s)
	if missingLabels[t] {
		return ""
	}
	return t
}

// ParseValue reads a cell. Empty cells and the usual NaN spellings are missing.
func ParseValue(s string) (Value, error) {
	t := strings.TrimSpace(s)
	switch strings.ToLower(t) {
	case "", "nan", "-nan", "na", "n/a", "#n/a", "<na>", "null", "none", "-":
		return Missing, nil
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return Missing, err
	}
	return Some(f), nil
}

// MarshalJSON encodes a missing value as null
func (x Value) MarshalJSON() ([]byte, error) {
	if !x.ok {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(x.v, 'g', -1, 64)), nil
}

// UnmarshalJSON decodes null as missing
func (x *Value) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*x = Missing
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*x = Some(f)
	return nil
}
