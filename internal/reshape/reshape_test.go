package reshape

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agmipx/internal/dataset"
)

func scenarioRecords() []dataset.Record {
	return []dataset.Record{
		{Model: "M1", Scenario: "S1", Year: 2000, Value: dataset.Some(10)},
		{Model: "M1", Scenario: "S1", Year: 2010, Value: dataset.Some(20)},
		{Model: "M2", Scenario: "S1", Year: 2000, Value: dataset.Some(5)},
		{Model: "M2", Scenario: "S1", Year: 2010, Value: dataset.Some(15)},
	}
}

var yearByModel = PivotSpec{Row: dataset.FieldYear, Col: dataset.FieldModel, Value: dataset.FieldValue, Agg: AggSum}

func scenarioTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := Pivot(scenarioRecords(), yearByModel)
	require.NoError(t, err)
	return tbl
}

// columnTable builds a single column table over the given row labels
func columnTable(rowField dataset.Field, rows []string, values ...dataset.Value) *Table {
	tbl := NewTable(rowField, dataset.FieldModel, rows, []string{"M1"})
	for i, v := range values {
		tbl.Set(i, 0, v)
	}
	return tbl
}

func assertCell(t *testing.T, want float64, got dataset.Value) {
	t.Helper()
	f, ok := got.Get()
	require.True(t, ok, "expected %v, got missing", want)
	assert.InDelta(t, want, f, 1e-9)
}

func TestPivot(t *testing.T) {
	tbl := scenarioTable(t)

	assert.Equal(t, []string{"2000", "2010"}, tbl.Rows())
	assert.Equal(t, []string{"M1", "M2"}, tbl.Cols())
	assertCell(t, 10, tbl.Get("2000", "M1"))
	assertCell(t, 5, tbl.Get("2000", "M2"))
	assertCell(t, 20, tbl.Get("2010", "M1"))
	assertCell(t, 15, tbl.Get("2010", "M2"))
}

func TestPivotAggregations(t *testing.T) {
	records := []dataset.Record{
		{Model: "M1", Year: 2000, Value: dataset.Some(2)},
		{Model: "M1", Year: 2000, Value: dataset.Some(4)},
		{Model: "M1", Year: 2000, Value: dataset.Missing},
		{Model: "M2", Year: 2000, Value: dataset.Missing},
		{Model: "M2", Year: 2010, Value: dataset.Some(7)},
	}

	tests := []struct {
		agg    Aggregation
		m1     float64
		m2Late float64
	}{
		{agg: AggSum, m1: 6, m2Late: 7},
		{agg: AggMean, m1: 3, m2Late: 7},
		{agg: AggCount, m1: 2, m2Late: 1},
		{agg: AggNone, m1: 4, m2Late: 7},
	}

	for _, tt := range tests {
		t.Run(string(tt.agg), func(t *testing.T) {
			spec := yearByModel
			spec.Agg = tt.agg
			tbl, err := Pivot(records, spec)
			require.NoError(t, err)

			assertCell(t, tt.m1, tbl.Get("2000", "M1"))
			assertCell(t, tt.m2Late, tbl.Get("2010", "M2"))
			assert.True(t, tbl.Get("2000", "M2").IsMissing(), "cell with only missing values stays missing")
			assert.True(t, tbl.Get("2010", "M1").IsMissing(), "cell without rows stays missing")
		})
	}
}

func TestPivotNeverProducesSpuriousZeros(t *testing.T) {
	records := append(scenarioRecords(), dataset.Record{Model: "M3", Year: 2020, Value: dataset.Some(1)})
	tbl, err := Pivot(records, yearByModel)
	require.NoError(t, err)

	for i := 0; i < tbl.NumRows(); i++ {
		for j := 0; j < tbl.NumCols(); j++ {
			if f, ok := tbl.At(i, j).Get(); ok {
				assert.NotZero(t, f)
			}
		}
	}
	assert.Equal(t, 4, tbl.MissingCount())
}

func TestPivotConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		spec PivotSpec
	}{
		{name: "same axes", spec: PivotSpec{Row: dataset.FieldModel, Col: dataset.FieldModel, Value: dataset.FieldValue}},
		{name: "value as axis", spec: PivotSpec{Row: dataset.FieldValue, Col: dataset.FieldModel, Value: dataset.FieldValue}},
		{name: "axis equals value field", spec: PivotSpec{Row: dataset.FieldYear, Col: dataset.FieldModel, Value: dataset.FieldYear}},
		{name: "categorical value with sum", spec: PivotSpec{Row: dataset.FieldYear, Col: dataset.FieldModel, Value: dataset.FieldUnit, Agg: AggSum}},
		{name: "unknown aggregation", spec: PivotSpec{Row: dataset.FieldYear, Col: dataset.FieldModel, Value: dataset.FieldValue, Agg: "median"}},
		{name: "unknown field", spec: PivotSpec{Row: dataset.Field(99), Col: dataset.FieldModel, Value: dataset.FieldValue}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Pivot(scenarioRecords(), tt.spec)
			var pce *PivotConfigError
			assert.True(t, errors.As(err, &pce), "expected PivotConfigError, got %v", err)
		})
	}

	t.Run("count over categorical field", func(t *testing.T) {
		tbl, err := Pivot(scenarioRecords(), PivotSpec{Row: dataset.FieldYear, Col: dataset.FieldModel, Value: dataset.FieldScenario, Agg: AggCount})
		require.NoError(t, err)
		assertCell(t, 1, tbl.Get("2000", "M1"))
	})
}

func TestParseNames(t *testing.T) {
	agg, err := ParseAggregation("")
	require.NoError(t, err)
	assert.Equal(t, AggSum, agg)

	agg, err = ParseAggregation("Passthrough")
	require.NoError(t, err)
	assert.Equal(t, AggNone, agg)

	_, err = ParseAggregation("median")
	assert.Error(t, err)

	m, err := ParseFillMethod("CubicSpline")
	require.NoError(t, err)
	assert.Equal(t, FillSpline, m)

	m, err = ParseFillMethod("")
	require.NoError(t, err)
	assert.Equal(t, FillNone, m)

	_, err = ParseFillMethod("quadratic")
	assert.Error(t, err)
}

func TestFill(t *testing.T) {
	years := []string{"2000", "2010", "2020", "2030"}

	t.Run("pad forward fills", func(t *testing.T) {
		in := columnTable(dataset.FieldYear, years, dataset.Some(10), dataset.Missing, dataset.Missing, dataset.Some(40))
		out, err := Fill(in, FillPad)
		require.NoError(t, err)
		for i, want := range []float64{10, 10, 10, 40} {
			assertCell(t, want, out.At(i, 0))
		}
		assert.True(t, in.At(1, 0).IsMissing(), "input is not mutated")
	})

	t.Run("pad leaves leading gaps", func(t *testing.T) {
		in := columnTable(dataset.FieldYear, years, dataset.Missing, dataset.Some(20), dataset.Missing, dataset.Missing)
		out, err := Fill(in, FillPad)
		require.NoError(t, err)
		assert.True(t, out.At(0, 0).IsMissing())
		assertCell(t, 20, out.At(3, 0))
	})

	t.Run("linear interpolates and extrapolates", func(t *testing.T) {
		in := columnTable(dataset.FieldYear, years, dataset.Missing, dataset.Some(20), dataset.Missing, dataset.Some(40))
		out, err := Fill(in, FillLinear)
		require.NoError(t, err)
		for i, want := range []float64{10, 20, 30, 40} {
			assertCell(t, want, out.At(i, 0))
		}
	})

	t.Run("linear uses numeric row labels", func(t *testing.T) {
		in := columnTable(dataset.FieldYear, []string{"2000", "2010", "2040"}, dataset.Some(0), dataset.Missing, dataset.Some(40))
		out, err := Fill(in, FillLinear)
		require.NoError(t, err)
		assertCell(t, 10, out.At(1, 0))
	})

	t.Run("linear falls back to positions", func(t *testing.T) {
		in := columnTable(dataset.FieldScenario, []string{"a", "b", "c"}, dataset.Some(0), dataset.Missing, dataset.Some(40))
		out, err := Fill(in, FillLinear)
		require.NoError(t, err)
		assertCell(t, 20, out.At(1, 0))
	})

	t.Run("cubic spline reproduces linear data", func(t *testing.T) {
		rows := []string{"0", "1", "2", "3", "4", "5"}
		in := columnTable(dataset.FieldYear, rows,
			dataset.Some(0), dataset.Some(10), dataset.Missing, dataset.Some(30), dataset.Missing, dataset.Some(50))
		out, err := Fill(in, FillSpline)
		require.NoError(t, err)
		assertCell(t, 20, out.At(2, 0))
		assertCell(t, 40, out.At(4, 0))
	})

	t.Run("cubic spline reproduces cubic data", func(t *testing.T) {
		cube := func(x float64) dataset.Value { return dataset.Some(x * x * x) }
		tests := []struct {
			name   string
			rows   []string
			values []dataset.Value
			want   map[int]float64
		}{
			{
				name:   "interior gap with four knots",
				rows:   []string{"0", "1", "2", "3", "4"},
				values: []dataset.Value{cube(0), cube(1), cube(2), dataset.Missing, cube(4)},
				want:   map[int]float64{3: 27},
			},
			{
				name:   "leading gap",
				rows:   []string{"0", "1", "2", "3", "4"},
				values: []dataset.Value{dataset.Missing, cube(1), cube(2), cube(3), cube(4)},
				want:   map[int]float64{0: 0},
			},
			{
				name:   "uneven knots with gaps at both ends",
				rows:   []string{"-1", "0", "1", "3", "4", "6", "7"},
				values: []dataset.Value{dataset.Missing, cube(0), cube(1), dataset.Missing, cube(4), cube(6), dataset.Missing},
				want:   map[int]float64{0: -1, 3: 27, 6: 343},
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				in := columnTable(dataset.FieldYear, tt.rows, tt.values...)
				out, err := Fill(in, FillSpline)
				require.NoError(t, err)
				for i, want := range tt.want {
					assert.InDelta(t, want, out.At(i, 0).Float(), 1e-9, "row %s", tt.rows[i])
				}
			})
		}
	})

	t.Run("cubic spline passes through known points", func(t *testing.T) {
		rows := []string{"0", "1", "2", "3", "4"}
		in := columnTable(dataset.FieldYear, rows,
			dataset.Some(1), dataset.Some(4), dataset.Some(2), dataset.Missing, dataset.Some(8))
		out, err := Fill(in, FillSpline)
		require.NoError(t, err)
		assertCell(t, 1, out.At(0, 0))
		assertCell(t, 4, out.At(1, 0))
		assertCell(t, 8, out.At(4, 0))
		assert.False(t, out.At(3, 0).IsMissing())
	})

	t.Run("cubic spline needs four points", func(t *testing.T) {
		in := columnTable(dataset.FieldYear, years, dataset.Some(1), dataset.Some(2), dataset.Missing, dataset.Some(4))
		_, err := Fill(in, FillSpline)
		var ide *InsufficientDataError
		require.True(t, errors.As(err, &ide), "expected InsufficientDataError, got %v", err)
		assert.Equal(t, "M1", ide.Column)
		assert.Equal(t, 3, ide.Have)
		assert.Equal(t, 4, ide.Need)
	})

	t.Run("linear needs two points", func(t *testing.T) {
		in := columnTable(dataset.FieldYear, years, dataset.Some(1), dataset.Missing, dataset.Missing, dataset.Missing)
		_, err := Fill(in, FillLinear)
		var ide *InsufficientDataError
		assert.True(t, errors.As(err, &ide))
	})

	t.Run("complete column is untouched even when short", func(t *testing.T) {
		in := columnTable(dataset.FieldYear, []string{"2000"}, dataset.Some(7))
		out, err := Fill(in, FillSpline)
		require.NoError(t, err)
		assert.True(t, in.Equal(out))
	})
}

func TestFillIsIdempotentOnCompleteTables(t *testing.T) {
	tbl := scenarioTable(t)
	for _, m := range FillMethods {
		t.Run(string(m), func(t *testing.T) {
			out, err := Fill(tbl, m)
			require.NoError(t, err)
			assert.True(t, tbl.Equal(out))
		})
	}
}

func TestIndex(t *testing.T) {
	tbl := scenarioTable(t)

	t.Run("on row", func(t *testing.T) {
		out, err := Index(tbl, "2000", true)
		require.NoError(t, err)
		assertCell(t, 100, out.Get("2000", "M1"))
		assertCell(t, 100, out.Get("2000", "M2"))
		assertCell(t, 200, out.Get("2010", "M1"))
		assertCell(t, 300, out.Get("2010", "M2"))
		assertCell(t, 10, tbl.Get("2000", "M1"))
	})

	t.Run("on column", func(t *testing.T) {
		out, err := Index(tbl, "M1", false)
		require.NoError(t, err)
		assertCell(t, 100, out.Get("2000", "M1"))
		assertCell(t, 50, out.Get("2000", "M2"))
		assertCell(t, 100, out.Get("2010", "M1"))
		assertCell(t, 75, out.Get("2010", "M2"))
	})

	t.Run("reference is exactly 100", func(t *testing.T) {
		in := columnTable(dataset.FieldYear, []string{"2000", "2010"}, dataset.Some(0.1), dataset.Some(0.3))
		in.Set(0, 0, dataset.Some(3.3))
		out, err := Index(in, "2000", true)
		require.NoError(t, err)
		f, ok := out.At(0, 0).Get()
		require.True(t, ok)
		assert.Equal(t, 100.0, f)
	})

	t.Run("zero and missing references propagate", func(t *testing.T) {
		in := NewTable(dataset.FieldYear, dataset.FieldModel, []string{"2000", "2010"}, []string{"M1", "M2"})
		in.Set(0, 0, dataset.Some(0))
		in.Set(1, 0, dataset.Some(5))
		in.Set(1, 1, dataset.Some(5))
		out, err := Index(in, "2000", true)
		require.NoError(t, err)
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				assert.True(t, out.At(i, j).IsMissing())
			}
		}
	})

	t.Run("unknown reference", func(t *testing.T) {
		_, err := Index(tbl, "1990", true)
		var pce *PivotConfigError
		assert.True(t, errors.As(err, &pce))

		_, err = Index(tbl, "M9", false)
		assert.True(t, errors.As(err, &pce))
	})
}

func TestHarmonize(t *testing.T) {
	tbl := scenarioTable(t)

	out, err := Harmonize(tbl, "2000", "M1")
	require.NoError(t, err)
	assertCell(t, 10, out.Get("2000", "M1"))
	assertCell(t, 20, out.Get("2010", "M1"))
	assertCell(t, 10, out.Get("2000", "M2"))
	assertCell(t, 30, out.Get("2010", "M2"))
	assertCell(t, 5, tbl.Get("2000", "M2"))

	t.Run("anchor is unchanged", func(t *testing.T) {
		in := NewTable(dataset.FieldYear, dataset.FieldModel, []string{"2000", "2010"}, []string{"A", "B"})
		in.Set(0, 0, dataset.Some(0.7))
		in.Set(1, 0, dataset.Some(1.3))
		in.Set(0, 1, dataset.Some(3.1))
		in.Set(1, 1, dataset.Some(2.9))
		out, err := Harmonize(in, "2010", "B")
		require.NoError(t, err)
		assert.InEpsilon(t, 2.9, out.Get("2010", "B").Float(), 1e-9)
		assert.InEpsilon(t, 2.9, out.Get("2010", "A").Float(), 1e-9)
	})

	t.Run("missing or zero base propagates", func(t *testing.T) {
		in := NewTable(dataset.FieldYear, dataset.FieldModel, []string{"2000", "2010"}, []string{"A", "B", "C"})
		in.Set(0, 0, dataset.Some(2))
		in.Set(1, 0, dataset.Some(4))
		in.Set(0, 1, dataset.Some(0))
		in.Set(1, 1, dataset.Some(4))
		in.Set(1, 2, dataset.Some(4))
		out, err := Harmonize(in, "2000", "A")
		require.NoError(t, err)
		assertCell(t, 4, out.Get("2010", "A"))
		assert.True(t, out.Get("2010", "B").IsMissing())
		assert.True(t, out.Get("2010", "C").IsMissing())
	})

	t.Run("unknown base", func(t *testing.T) {
		_, err := Harmonize(tbl, "1990", "M1")
		var pce *PivotConfigError
		assert.True(t, errors.As(err, &pce))

		_, err = Harmonize(tbl, "2000", "M9")
		assert.True(t, errors.As(err, &pce))
	})
}

func TestDropMissing(t *testing.T) {
	in := NewTable(dataset.FieldYear, dataset.FieldModel, []string{"2000", "2010", "2020"}, []string{"A", "B", "C"})
	in.Set(0, 0, dataset.Some(1))
	in.Set(2, 2, dataset.Some(3))

	out := DropMissing(in)
	assert.Equal(t, []string{"2000", "2020"}, out.Rows())
	assert.Equal(t, []string{"A", "C"}, out.Cols())
	assertCell(t, 1, out.Get("2000", "A"))
	assertCell(t, 3, out.Get("2020", "C"))
	assert.Equal(t, 3, in.NumRows())

	empty := DropMissing(NewTable(dataset.FieldYear, dataset.FieldModel, []string{"2000"}, []string{"A"}))
	assert.Equal(t, 0, empty.NumRows())
	assert.Equal(t, 0, empty.NumCols())
}

func TestOptionsTitle(t *testing.T) {
	o := Options{
		Pivot:     yearByModel,
		Fill:      FillLinear,
		Index:     &IndexOptions{Reference: "2000", OnRow: true},
		Harmonize: &HarmonizeOptions{BaseRow: "2000", BaseCol: "M1"},
	}
	require.NoError(t, o.Validate())
	assert.Equal(t, "Value (sum) by Year and Model, linear fill, indexed to Year 2000 = 100, harmonized to M1 at 2000", o.Title())

	x, y := o.AxisFlags()
	assert.True(t, x)
	assert.False(t, y)

	o.Index = &IndexOptions{}
	assert.Error(t, o.Validate())
}
