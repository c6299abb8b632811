package reshape

import (
	"fmt"
)

// PivotConfigError reports an invalid axis, value field or reference label
type PivotConfigError struct {
	Field  string
	Reason string
}

func (e *PivotConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid pivot configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid pivot configuration for %s: %s", e.Field, e.Reason)
}

// InsufficientDataError reports a column with too few known points for an interpolation method
type InsufficientDataError struct {
	Column string
	Method FillMethod
	Have   int
	Need   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("column %q has %d known values, %s fill needs at least %d",
		e.Column, e.Have, e.Method, e.Need)
}
