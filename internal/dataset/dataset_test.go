package dataset

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const sampleCSV = `Model,Scenario,Year,Sector,Region,Indicator,Unit,Value
M1,S1,2000,AGR,WLD,PROD,Mt,10
M1,S1,2010,AGR,WLD,PROD,Mt,20
M2,S1,2000,AGR,USA,PROD,Mt,5
M2,S2,2010,CRP,USA,AREA,ha,
`

func TestParseField(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Field
		wantErr bool
	}{
		{name: "canonical", input: "Scenario", want: FieldScenario},
		{name: "lower case", input: "year", want: FieldYear},
		{name: "padded", input: "  Value ", want: FieldValue},
		{name: "unknown", input: "Country", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseField(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFieldKinds(t *testing.T) {
	assert.True(t, FieldYear.IsNumeric())
	assert.True(t, FieldValue.IsNumeric())
	assert.False(t, FieldYear.IsCategorical())
	assert.True(t, FieldRegion.IsCategorical())
	assert.False(t, Field(42).Valid())
	assert.Equal(t, "Field(42)", Field(42).String())
}

func TestValueArithmetic(t *testing.T) {
	assert.True(t, Some(10).Div(Some(0)).IsMissing(), "zero divisor is missing")
	assert.True(t, Some(10).Div(Missing).IsMissing())
	assert.True(t, Missing.Mul(Some(2)).IsMissing())
	assert.True(t, Some(1).Add(Missing).IsMissing())

	v, ok := Some(15).Div(Some(5)).Get()
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)

	assert.True(t, Some(1).Scale(1e308).Scale(10).IsMissing(), "overflow is missing")
	assert.True(t, Missing.Equal(Value{}))
	assert.False(t, Some(0).Equal(Missing))
}

func TestParseValue(t *testing.T) {
	for _, s := range []string{"", "NaN", "nan", "NA", " "} {
		v, err := ParseValue(s)
		require.NoError(t, err)
		assert.True(t, v.IsMissing(), "%q should be missing", s)
	}
	v, err := ParseValue("1.5e2")
	require.NoError(t, err)
	assert.Equal(t, 150.0, v.Float())

	_, err = ParseValue("abc")
	assert.Error(t, err)
}

func TestValueJSON(t *testing.T) {
	data, err := Missing.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	var v Value
	require.NoError(t, v.UnmarshalJSON([]byte("2.5")))
	assert.Equal(t, Some(2.5), v)
	require.NoError(t, v.UnmarshalJSON([]byte("null")))
	assert.True(t, v.IsMissing())
}

func TestReadCSV(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, Record{
		Model: "M1", Scenario: "S1", Year: 2000, Sector: "AGR",
		Region: "WLD", Indicator: "PROD", Unit: "Mt", Value: Some(10),
	}, records[0])
	assert.True(t, records[3].Value.IsMissing())
}

func TestReadCSV_ColumnOrderAndBOM(t *testing.T) {
	input := "\xEF\xBB\xBFvalue,year,unit,indicator,region,sector,scenario,model,extra\n" +
		"1.5,2010.0,t,I,R,S,Sc,M,ignored\n\n"
	records, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2010, records[0].Year)
	assert.Equal(t, "M", records[0].Model)
	assert.Equal(t, Some(1.5), records[0].Value)
}

func TestReadCSV_MissingLabels(t *testing.T) {
	input := "Model,Scenario,Year,Sector,Region,Indicator,Unit,Value\n" +
		"M1,NA,2000,nan,N/A,null,<NA>,1\n" +
		"M1,S1,2010,AGR, WLD ,PROD,t,NA\n"
	records, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, Record{Model: "M1", Year: 2000, Value: Some(1)}, records[0])
	assert.Equal(t, "WLD", records[1].Region)
	assert.True(t, records[1].Value.IsMissing())

	u := New("memory", records).Uniques()
	assert.Equal(t, []string{"S1"}, u.Values(FieldScenario, AllModels))
	assert.Equal(t, []string{"WLD"}, u.Values(FieldRegion, "M1"))
	assert.Equal(t, []string{"t"}, u.Values(FieldUnit, AllModels))
}

func TestCleanLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "NA", want: ""},
		{in: " NaN ", want: ""},
		{in: "#N/A", want: ""},
		{in: "None", want: ""},
		{in: "NAM", want: "NAM"},
		{in: " SSP2 ", want: "SSP2"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanLabel(tt.in))
		})
	}
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: "empty file"},
		{name: "missing columns", input: "Model,Value\nM1,1\n", want: "missing columns"},
		{name: "bad year", input: "Model,Scenario,Year,Sector,Region,Indicator,Unit,Value\nM,S,20x0,A,R,I,U,1\n", want: "line 2: field Year"},
		{name: "bad value", input: "Model,Scenario,Year,Sector,Region,Indicator,Unit,Value\nM,S,2000,A,R,I,U,abc\n", want: "field Value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestUniques(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	ds := New("memory", records)
	u := ds.Uniques()

	assert.Equal(t, []string{"M1", "M2"}, ds.Models())
	assert.Equal(t, []string{"S1", "S2"}, u.Values(FieldScenario, AllModels))
	assert.Equal(t, []string{"S1"}, u.Values(FieldScenario, "M1"))
	assert.Equal(t, []string{"S1", "S2"}, u.Values(FieldScenario, All))
	assert.Equal(t, []string{"2000", "2010"}, u.Values(FieldYear, "M1"))
	assert.Nil(t, u.Values(FieldScenario, "nope"))
	assert.Equal(t, []int{2000, 2010}, ds.Years())

	t.Run("choices cascade over selected models", func(t *testing.T) {
		assert.Equal(t, []string{"PROD"}, u.Choices(FieldIndicator, []string{"M1"}))
		assert.Equal(t, []string{"AREA", "PROD"}, u.Choices(FieldIndicator, []string{"M2"}))
		assert.Equal(t, []string{"AREA", "PROD"}, u.Choices(FieldIndicator, []string{All}))
		assert.Equal(t, []string{"AREA", "PROD"}, u.Choices(FieldIndicator, nil))
	})

	t.Run("missing values are excluded", func(t *testing.T) {
		ds := New("memory", []Record{{Model: "M1", Scenario: "", Year: 2000}})
		assert.Empty(t, ds.Uniques().Values(FieldScenario, AllModels))
		assert.False(t, ds.Uniques().Contains(FieldScenario, "M1", ""))
	})

	t.Run("numeric fields sort numerically", func(t *testing.T) {
		ds := New("memory", []Record{{Model: "M", Year: 900}, {Model: "M", Year: 10000}, {Model: "M", Year: 2000}})
		assert.Equal(t, []string{"900", "2000", "10000"}, ds.Uniques().Values(FieldYear, "M"))
	})
}

func TestDatasetRecordsAreClipped(t *testing.T) {
	records := make([]Record, 2, 10)
	ds := New("memory", records)
	out := ds.Records()
	out = append(out, Record{Model: "intruder"})
	assert.Equal(t, 2, ds.Len())
	assert.Len(t, out, 3)
	assert.Equal(t, "", records[:3][2].Model, "append must not write into the dataset backing array")
}

func TestUniquesCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "Merged.csv")
	require.NoError(t, os.WriteFile(dataPath, []byte(sampleCSV), 0644))

	records, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	want := BuildUniques(records)

	cachePath := CachePath(dataPath)
	assert.Equal(t, filepath.Join(dir, "Merged.uniques.msgpack"), cachePath)
	require.NoError(t, WriteUniquesCacheFor(cachePath, dataPath, want))

	got, err := ReadUniquesCache(cachePath, dataPath)
	require.NoError(t, err)
	for _, f := range UniqueFields {
		assert.Equal(t, want.Values(f, AllModels), got.Values(f, AllModels), f.String())
		assert.Equal(t, want.Values(f, "M2"), got.Values(f, "M2"), f.String())
	}

	t.Run("stale after data file changes", func(t *testing.T) {
		require.NoError(t, os.WriteFile(dataPath, []byte(sampleCSV+"M3,S1,2000,A,R,I,U,1\n"), 0644))
		_, err := ReadUniquesCache(cachePath, dataPath)
		assert.ErrorIs(t, err, ErrStaleCache)
	})
}

func TestLoader(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("csv with cache", func(t *testing.T) {
		path := filepath.Join(dir, "data.csv")
		require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0644))

		loader := NewLoader(slog.Default(), true)
		ds, err := loader.Load(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 4, ds.Len())
		assert.FileExists(t, CachePath(path))

		again, err := loader.Load(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, ds.Models(), again.Models())
	})

	t.Run("xlsx", func(t *testing.T) {
		path := filepath.Join(dir, "data.xlsx")
		f := excelize.NewFile()
		rows, err := ReadCSV(strings.NewReader(sampleCSV))
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Model", "Scenario", "Year", "Sector", "Region", "Indicator", "Unit", "Value"}))
		for i, r := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			require.NoError(t, err)
			row := []interface{}{r.Model, r.Scenario, r.Year, r.Sector, r.Region, r.Indicator, r.Unit, r.Value.String()}
			require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
		}
		require.NoError(t, f.SaveAs(path))
		require.NoError(t, f.Close())

		ds, err := NewLoader(nil, false).Load(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 4, ds.Len())
		assert.Equal(t, 2010, ds.At(1).Year)
		assert.True(t, ds.At(3).Value.IsMissing())
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := NewLoader(nil, false).Load(ctx, filepath.Join(dir, "data.parquet"))
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}
