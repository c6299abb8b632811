package operations

import (
	"fmt"

	"agmipx/internal/dataset"
	"agmipx/internal/reshape"
)

// Plot preset names
const (
	PresetCustom            = "Custom"
	PresetModelByYear       = "Values for Model by Year"
	PresetScenarioByModel   = "Values for Scenario by Model"
	PresetHarmonizedToModel = "Harmonized to Model & Year"
)

// PresetInfo describes a canned pivot layout
type PresetInfo struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Row         dataset.Field `json:"row,omitempty"`
	Col         dataset.Field `json:"col,omitempty"`
	Harmonize   bool          `json:"harmonize"`
}

// Presets lists the available presets in menu order
var Presets = []PresetInfo{
	{Name: PresetCustom, Description: "Use the pivot settings as given"},
	{Name: PresetModelByYear, Description: "Sum of values, one column per model over years",
		Row: dataset.FieldYear, Col: dataset.FieldModel},
	{Name: PresetScenarioByModel, Description: "Sum of values, one column per scenario across models",
		Row: dataset.FieldModel, Col: dataset.FieldScenario},
	{Name: PresetHarmonizedToModel, Description: "Model by year, harmonized to a chosen model and year",
		Row: dataset.FieldYear, Col: dataset.FieldModel, Harmonize: true},
}

// LookupPreset finds a preset by name
func LookupPreset(name string) (PresetInfo, bool) {
	for _, p := range Presets {
		if p.Name == name {
			return p, true
		}
	}
	return PresetInfo{}, false
}

// Preset applies the named preset on top of base. Custom and "" return base
// unchanged. The harmonized preset takes its anchor from base.Harmonize.
func Preset(name string, base reshape.Options) (reshape.Options, error) {
	if name == "" || name == PresetCustom {
		return base, nil
	}
	p, ok := LookupPreset(name)
	if !ok {
		return base, &reshape.PivotConfigError{Field: "preset", Reason: fmt.Sprintf("unknown preset %q", name)}
	}

	out := base
	out.Pivot = reshape.PivotSpec{
		Row:   p.Row,
		Col:   p.Col,
		Value: dataset.FieldValue,
		Agg:   reshape.AggSum,
	}
	if p.Harmonize {
		if base.Harmonize == nil || base.Harmonize.BaseRow == "" || base.Harmonize.BaseCol == "" {
			return base, &reshape.PivotConfigError{Field: "harmonize", Reason: "preset needs a base model and year"}
		}
		h := *base.Harmonize
		out.Harmonize = &h
	} else {
		out.Harmonize = nil
	}
	return out, nil
}
