package exporter

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"agmipx/internal/config"
	"agmipx/internal/dataset"
	"agmipx/internal/reshape"
)

func sampleFrame() *Frame {
	t := reshape.NewTable(dataset.FieldYear, dataset.FieldModel, []string{"2000", "2010"}, []string{"M1", "M2"})
	t.Set(0, 0, dataset.Some(10.126))
	t.Set(1, 0, dataset.Some(20))
	t.Set(1, 1, dataset.Some(5.5))
	return FromTable(t, "Value (sum) by Year and Model")
}

func TestFromTable(t *testing.T) {
	f := sampleFrame()
	assert.Equal(t, []string{"Year", "M1", "M2"}, f.Names())
	assert.Equal(t, 2, f.NumRows())
	assert.Equal(t, "2010", f.Cell(1, 0))
	assert.Equal(t, 20.0, f.Cell(1, 1))
	assert.Nil(t, f.Cell(0, 2))
}

func TestFromRecords(t *testing.T) {
	f := FromRecords([]dataset.Record{
		{Model: "M1", Scenario: "S1", Year: 2000, Sector: "AGR", Region: "WLD", Indicator: "PROD", Unit: "Mt", Value: dataset.Some(1)},
		{Model: "M2", Scenario: "S1", Year: 2010, Sector: "AGR", Region: "WLD", Indicator: "PROD", Unit: "Mt", Value: dataset.Missing},
	}, "")

	require.Len(t, f.Columns, len(dataset.Fields))
	assert.Equal(t, 2, f.NumRows())
	for j, c := range f.Columns {
		assert.Equal(t, dataset.Fields[j].String(), c.Name)
	}
	assert.Equal(t, int64(2010), f.Cell(1, 2))
	assert.Nil(t, f.Cell(1, len(f.Columns)-1))
}

func TestWriteCSV(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{
			name: "two decimals with BOM",
			opts: Options{Precision: 2, CSVBOM: true},
			want: "\ufeffYear,M1,M2\n2000,10.13,\n2010,20.00,5.50\n",
		},
		{
			name: "full precision",
			opts: Options{Precision: -1},
			want: "Year,M1,M2\n2000,10.126,\n2010,20,5.5\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteCSV(&buf, sampleFrame(), tt.opts))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleFrame()))

	var got struct {
		Title   string          `json:"title"`
		Columns []string        `json:"columns"`
		Data    [][]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "Value (sum) by Year and Model", got.Title)
	assert.Equal(t, []string{"Year", "M1", "M2"}, got.Columns)
	assert.Equal(t, []interface{}{"2000", 10.126, nil}, got.Data[0])
}

func TestWriteHTML(t *testing.T) {
	f := sampleFrame()
	f.Title = "<Yield>"

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, f, Options{Precision: 1}))

	out := buf.String()
	assert.Contains(t, out, "<title>&lt;Yield&gt;</title>")
	assert.Contains(t, out, "<th>Year</th><th>M1</th><th>M2</th>")
	assert.Contains(t, out, "<tr><td>2010</td><td>20.0</td><td>5.5</td></tr>")
	assert.Contains(t, out, "<td>10.1</td><td></td>")
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleFrame()))

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows(xlsxSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Year", "M1", "M2"}, rows[0])
	assert.Equal(t, "2010", rows[2][0])
	assert.Equal(t, "5.5", rows[2][2])
}

func TestWriteArrow(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteArrow(&buf, sampleFrame()))

	r, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer r.Close()

	schema := r.Schema()
	require.Equal(t, 3, len(schema.Fields()))
	assert.Equal(t, "M2", schema.Field(2).Name)
	assert.True(t, schema.Field(2).Nullable)
	assert.GreaterOrEqual(t, schema.Metadata().FindKey("title"), 0)

	require.Equal(t, 1, r.NumRecords())
	rec, err := r.Record(0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.NumRows())
	assert.Equal(t, 1, rec.Column(2).NullN())
}

func TestMsgpackBlob(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMsgpack(&buf, sampleFrame()))

	got, err := ReadMsgpack(&buf)
	require.NoError(t, err)
	assert.Equal(t, sampleFrame().Title, got.Title)
	assert.Equal(t, []string{"Year", "M1", "M2"}, got.Names())
	assert.Nil(t, got.Cell(0, 2))
	assert.Equal(t, 5.5, got.Cell(1, 2))
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"csv", FormatCSV},
		{".JSON", FormatJSON},
		{"htm", FormatHTML},
		{"xls", FormatXLSX},
		{"feather", FormatArrow},
		{"pickle", FormatMsgpack},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseFormat("h5")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "AgMIP_Explorer_Data.csv", Options{}.FileName(FormatCSV))
	assert.Equal(t, "run.mpk", Options{DownloadName: "run"}.FileName(FormatMsgpack))
}

func TestExporterSave(t *testing.T) {
	dir := t.TempDir()
	exp := New(&config.Paths{ExportsDir: dir}, Options{Precision: 2}, nil)

	path, err := exp.Save(context.Background(), sampleFrame(), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "AgMIP_Explorer_Data.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Year,M1,M2\n"))

	_, err = exp.Write(context.Background(), &bytes.Buffer{}, sampleFrame(), Format("h5"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
