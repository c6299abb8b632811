package query

import (
	"fmt"
	"sort"
	"strings"

	"agmipx/internal/dataset"
)

// YearConstraint restricts the Year field: any year, an explicit set, or an inclusive range
type YearConstraint struct {
	years  map[int]struct{}
	from   int
	to     int
	ranged bool
}

// AnyYear places no restriction on Year
func AnyYear() YearConstraint { return YearConstraint{} }

// Years matches any of the given years. No years means any year.
func Years(years ...int) YearConstraint {
	if len(years) == 0 {
		return AnyYear()
	}
	set := make(map[int]struct{}, len(years))
	for _, y := range years {
		set[y] = struct{}{}
	}
	return YearConstraint{years: set}
}

// YearRange matches from <= year <= to
func YearRange(from, to int) YearConstraint {
	return YearConstraint{from: from, to: to, ranged: true}
}

// IsAny reports whether the constraint is unconstrained
func (y YearConstraint) IsAny() bool {
	return len(y.years) == 0 && !y.ranged
}

// Match reports whether year satisfies the constraint
func (y YearConstraint) Match(year int) bool {
	if y.ranged {
		return year >= y.from && year <= y.to
	}
	if len(y.years) == 0 {
		return true
	}
	_, ok := y.years[year]
	return ok
}

// List returns the explicit years in ascending order, or nil for ranges and any-year
func (y YearConstraint) List() []int {
	if len(y.years) == 0 {
		return nil
	}
	out := make([]int, 0, len(y.years))
	for v := range y.years {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// String describes the constraint for logs and titles
func (y YearConstraint) String() string {
	switch {
	case y.ranged:
		return fmt.Sprintf("%d-%d", y.from, y.to)
	case len(y.years) == 0:
		return dataset.All
	}
	parts := make([]string, 0, len(y.years))
	for _, v := range y.List() {
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, ",")
}

func (y YearConstraint) validate() error {
	if y.ranged && y.from > y.to {
		return &QueryError{Field: dataset.FieldYear.String(), Reason: fmt.Sprintf("range start %d is after end %d", y.from, y.to)}
	}
	if y.ranged && len(y.years) > 0 {
		return &QueryError{Field: dataset.FieldYear.String(), Reason: "cannot combine a year range with explicit years"}
	}
	return nil
}

// Criteria selects records by categorical field membership and year
type Criteria struct {
	selections map[dataset.Field]map[string]struct{}
	Years      YearConstraint
}

// NewCriteria builds criteria from field names to selected values. A field whose
// selection is empty or contains dataset.All is unconstrained. Field names are
// checked against the schema; only categorical fields can be selected on.
func NewCriteria(selections map[string][]string, years YearConstraint) (Criteria, error) {
	c := Criteria{
		selections: make(map[dataset.Field]map[string]struct{}),
		Years:      years,
	}
	names := make([]string, 0, len(selections))
	for name := range selections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f, err := dataset.ParseField(name)
		if err != nil {
			return Criteria{}, &QueryError{Field: name, Reason: "unknown field"}
		}
		if err := c.set(f, selections[name]); err != nil {
			return Criteria{}, err
		}
	}
	if err := years.validate(); err != nil {
		return Criteria{}, err
	}
	return c, nil
}

// MatchAll returns criteria with every field unconstrained
func MatchAll() Criteria {
	return Criteria{selections: map[dataset.Field]map[string]struct{}{}}
}

// With returns a copy of c that restricts f to values
func (c Criteria) With(f dataset.Field, values ...string) (Criteria, error) {
	out := Criteria{
		selections: make(map[dataset.Field]map[string]struct{}, len(c.selections)+1),
		Years:      c.Years,
	}
	for k, v := range c.selections {
		out.selections[k] = v
	}
	if err := out.set(f, values); err != nil {
		return Criteria{}, err
	}
	return out, nil
}

func (c *Criteria) set(f dataset.Field, values []string) error {
	if !f.Valid() {
		return &QueryError{Field: f.String(), Reason: "unknown field"}
	}
	if !f.IsCategorical() {
		return &QueryError{Field: f.String(), Reason: "field is not categorical"}
	}
	if isWildcard(values) {
		delete(c.selections, f)
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	c.selections[f] = set
	return nil
}

// Selection returns the selected values for f in sorted order, or nil when unconstrained
func (c Criteria) Selection(f dataset.Field) []string {
	set, ok := c.selections[f]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// IsUnconstrained reports whether the criteria match every record
func (c Criteria) IsUnconstrained() bool {
	return len(c.selections) == 0 && c.Years.IsAny()
}

// Match reports whether r satisfies every constraint
func (c Criteria) Match(r dataset.Record) bool {
	if !c.Years.Match(r.Year) {
		return false
	}
	for f, set := range c.selections {
		if _, ok := set[r.Label(f)]; !ok {
			return false
		}
	}
	return true
}

// String renders the criteria in a stable, human readable form
func (c Criteria) String() string {
	var parts []string
	for _, f := range dataset.CategoricalFields {
		if sel := c.Selection(f); sel != nil {
			parts = append(parts, fmt.Sprintf("%s in [%s]", f, strings.Join(sel, ", ")))
		}
	}
	if !c.Years.IsAny() {
		parts = append(parts, fmt.Sprintf("Year in [%s]", c.Years))
	}
	if len(parts) == 0 {
		return dataset.All
	}
	return strings.Join(parts, " and ")
}

func isWildcard(values []string) bool {
	if len(values) == 0 {
		return true
	}
	for _, v := range values {
		if v == dataset.All {
			return true
		}
	}
	return false
}
