package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/warecross/wms/internal/core"
	"github.com/warecross/wms/internal/mapping"
)

func sampleRun() *core.ProcessingRun {
	started := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	return &core.ProcessingRun{
		RunID:       "11111111-2222-3333-4444-555555555555",
		Marketplace: "amazon",
		FileName:    "sales.csv",
		TotalRows:   3,
		Mapped:      2,
		Unmapped:    1,
		Persisted:   3,
		StartedAt:   started,
		FinishedAt:  started.Add(2 * time.Second),
		Duration:    2 * time.Second,
	}
}

func sampleResults() []core.ProcessingResult {
	return []core.ProcessingResult{
		{RowIndex: 0, LineNumber: 2, RawSKU: "AMZ-1", MSKU: "MSKU-1", Status: mapping.StatusMapped},
		{RowIndex: 1, LineNumber: 3, RawSKU: "AMZ-2", MSKU: "MSKU-2", Status: mapping.StatusMapped},
		{RowIndex: 2, LineNumber: 4, RawSKU: "AMZ-3", Status: mapping.StatusUnmapped},
	}
}

func TestResultsCSV(t *testing.T) {
	out, err := ResultsCSV(sampleResults())
	if err != nil {
		t.Fatalf("ResultsCSV() error = %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("records = %d, want 4 (header + 3)", len(records))
	}
	if records[0][2] != "Raw SKU" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][2] != "AMZ-1" || records[1][4] != "mapped" {
		t.Errorf("row 1 = %v", records[1])
	}
	if records[3][3] != "" || records[3][4] != "unmapped" {
		t.Errorf("row 3 = %v", records[3])
	}
}

func TestResultsCSV_Empty(t *testing.T) {
	out, err := ResultsCSV(nil)
	if err != nil {
		t.Fatalf("ResultsCSV() error = %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("records = %d, want header only", len(records))
	}
}

func TestMappingsCSV(t *testing.T) {
	mappings := []mapping.Mapping{
		{Marketplace: "amazon", RawSKU: "AMZ-1", MSKU: "MSKU-1", CreatedAt: time.Now().UTC()},
	}
	out, err := MappingsCSV(mappings)
	if err != nil {
		t.Fatalf("MappingsCSV() error = %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(records) != 2 || records[1][0] != "amazon" || records[1][2] != "MSKU-1" {
		t.Errorf("records = %v", records)
	}
}

func TestResultsXLSX_NonEmpty(t *testing.T) {
	out, err := ResultsXLSX(sampleRun(), sampleResults())
	if err != nil {
		t.Fatalf("ResultsXLSX() error = %v", err)
	}
	if len(out) == 0 {
		t.Error("ResultsXLSX() produced no bytes")
	}
}

func TestRunReportPDF_NonEmpty(t *testing.T) {
	out, err := RunReportPDF(sampleRun())
	if err != nil {
		t.Fatalf("RunReportPDF() error = %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Error("RunReportPDF() output is not a PDF")
	}
}
