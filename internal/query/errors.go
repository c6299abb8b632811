package query

import (
	"fmt"
)

// QueryError reports filter criteria that cannot be evaluated against the schema
type QueryError struct {
	Field  string
	Reason string
}

func (e *QueryError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid query: %s", e.Reason)
	}
	return fmt.Sprintf("invalid query on field %q: %s", e.Field, e.Reason)
}
