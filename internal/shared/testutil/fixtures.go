package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"agmipx/internal/dataset"
)

// SampleCSV is a small dataset in the merged AgMIP layout. M1 has a gap in
// 2010 and M3 has no values at all.
const SampleCSV = `Model,Scenario,Year,Sector,Region,Indicator,Unit,Value
M1,S1,2000,AGR,WLD,PROD,t,10
M1,S1,2010,AGR,WLD,PROD,t,
M1,S1,2020,AGR,WLD,PROD,t,30
M2,S1,2000,AGR,WLD,PROD,t,5
M2,S1,2010,AGR,WLD,PROD,t,15
M2,S1,2020,AGR,WLD,PROD,t,25
M3,S2,2000,AGR,EUR,PROD,t,NA
`

// SampleRecords returns the records of SampleCSV
func SampleRecords() []dataset.Record {
	rec := func(model, scenario string, year int, region string, v dataset.Value) dataset.Record {
		return dataset.Record{
			Model: model, Scenario: scenario, Year: year, Sector: "AGR",
			Region: region, Indicator: "PROD", Unit: "t", Value: v,
		}
	}
	return []dataset.Record{
		rec("M1", "S1", 2000, "WLD", dataset.Some(10)),
		rec("M1", "S1", 2010, "WLD", dataset.Missing),
		rec("M1", "S1", 2020, "WLD", dataset.Some(30)),
		rec("M2", "S1", 2000, "WLD", dataset.Some(5)),
		rec("M2", "S1", 2010, "WLD", dataset.Some(15)),
		rec("M2", "S1", 2020, "WLD", dataset.Some(25)),
		rec("M3", "S2", 2000, "EUR", dataset.Missing),
	}
}

// SampleDataset wraps SampleRecords in a dataset named sample.csv
func SampleDataset() *dataset.Dataset {
	return dataset.New("sample.csv", SampleRecords())
}

// WriteSampleCSV writes SampleCSV to dir/name and returns the path
func WriteSampleCSV(t *testing.T, dir, name string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(SampleCSV), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
