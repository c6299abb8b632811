package dataset

import (
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// AllModels is the model key holding values observed across every model
const AllModels = ""

// All is the selection sentinel meaning "no restriction"
const All = "(All)"

// UniqueFields are the fields indexed per model
var UniqueFields = []Field{
	FieldModel, FieldScenario, FieldYear, FieldSector, FieldRegion, FieldIndicator, FieldUnit,
}

type valueSet map[string]struct{}

// Uniques maps field -> model -> distinct non-missing values
type Uniques struct {
	fields map[Field]map[string]valueSet
}

// BuildUniques scans records once per field. Fields are scanned concurrently;
// records are only read.
func BuildUniques(records []Record) *Uniques {
	perField := make([]map[string]valueSet, len(UniqueFields))

	var g errgroup.Group
	for i, f := range UniqueFields {
		g.Go(func() error {
			perField[i] = scanField(records, f)
			return nil
		})
	}
	_ = g.Wait()

	u := &Uniques{fields: make(map[Field]map[string]valueSet, len(UniqueFields))}
	for i, f := range UniqueFields {
		u.fields[f] = perField[i]
	}
	return u
}

func scanField(records []Record, f Field) map[string]valueSet {
	byModel := map[string]valueSet{AllModels: {}}
	for _, r := range records {
		if !r.Has(f) {
			continue
		}
		label := r.Label(f)
		byModel[AllModels][label] = struct{}{}
		if r.Model == "" {
			continue
		}
		set, ok := byModel[r.Model]
		if !ok {
			set = valueSet{}
			byModel[r.Model] = set
		}
		set[label] = struct{}{}
	}
	return byModel
}

// Values returns the sorted distinct values of field for one model, or for all
// models when model is AllModels or All. Unknown models yield nil.
func (u *Uniques) Values(f Field, model string) []string {
	if model == All {
		model = AllModels
	}
	set := u.fields[f][model]
	if set == nil {
		return nil
	}
	return sortedLabels(f, set)
}

// Choices returns the values of field observed for any of the given models.
// No models, or a selection containing All, means every model.
func (u *Uniques) Choices(f Field, models []string) []string {
	if len(models) == 0 {
		return u.Values(f, AllModels)
	}
	union := valueSet{}
	for _, m := range models {
		if m == All || m == AllModels {
			return u.Values(f, AllModels)
		}
		for v := range u.fields[f][m] {
			union[v] = struct{}{}
		}
	}
	return sortedLabels(f, union)
}

// Contains reports whether value was observed for field under model
func (u *Uniques) Contains(f Field, model, value string) bool {
	_, ok := u.fields[f][model][value]
	return ok
}

// Models returns every model key present in the index, excluding AllModels
func (u *Uniques) Models() []string {
	var models []string
	for m := range u.fields[FieldModel] {
		if m != AllModels {
			models = append(models, m)
		}
	}
	sort.Strings(models)
	return models
}

// sortedLabels orders numeric fields numerically and the rest lexically
func sortedLabels(f Field, set valueSet) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	SortLabels(f, out)
	return out
}

// SortLabels sorts labels of field f in place: numerically for Year and Value,
// lexically otherwise. Labels that do not parse fall back to string order.
func SortLabels(f Field, labels []string) {
	if !f.IsNumeric() {
		sort.Strings(labels)
		return
	}
	sort.SliceStable(labels, func(i, j int) bool {
		a, errA := strconv.ParseFloat(labels[i], 64)
		b, errB := strconv.ParseFloat(labels[j], 64)
		if errA != nil || errB != nil {
			return labels[i] < labels[j]
		}
		return a < b
	})
}
