// Package export renders run results and mapping tables as downloadable
// CSV, XLSX, and PDF documents.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/warecross/wms/internal/core"
	"github.com/warecross/wms/internal/mapping"
)

var resultHeader = []string{"Row", "Line", "Raw SKU", "MSKU", "Status", "Reason"}
var mappingHeader = []string{"Marketplace", "Raw SKU", "MSKU", "Created At"}

// ResultsCSV renders per-row run results as CSV.
func ResultsCSV(results []core.ProcessingResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(resultHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, r := range results {
		record := []string{
			strconv.Itoa(r.RowIndex),
			strconv.Itoa(r.LineNumber),
			r.RawSKU,
			r.MSKU,
			string(r.Status),
			r.Reason,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write row %d: %w", r.RowIndex, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ResultsXLSX renders a run summary plus per-row results as an XLSX workbook.
func ResultsXLSX(run *core.ProcessingRun, results []core.ProcessingResult) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	resultsSheet := "results"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(resultsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Processing Run")
	_ = f.SetCellValue(summarySheet, "A3", "Run ID")
	_ = f.SetCellValue(summarySheet, "B3", run.RunID)
	_ = f.SetCellValue(summarySheet, "A4", "Marketplace")
	_ = f.SetCellValue(summarySheet, "B4", run.Marketplace)
	_ = f.SetCellValue(summarySheet, "A5", "File")
	_ = f.SetCellValue(summarySheet, "B5", run.FileName)
	_ = f.SetCellValue(summarySheet, "A6", "Total Rows")
	_ = f.SetCellValue(summarySheet, "B6", run.TotalRows)
	_ = f.SetCellValue(summarySheet, "A7", "Mapped")
	_ = f.SetCellValue(summarySheet, "B7", run.Mapped)
	_ = f.SetCellValue(summarySheet, "A8", "Unmapped")
	_ = f.SetCellValue(summarySheet, "B8", run.Unmapped)
	_ = f.SetCellValue(summarySheet, "A9", "Invalid")
	_ = f.SetCellValue(summarySheet, "B9", run.Invalid)
	_ = f.SetCellValue(summarySheet, "A10", "Persisted")
	_ = f.SetCellValue(summarySheet, "B10", run.Persisted)
	_ = f.SetCellValue(summarySheet, "A11", "Started")
	_ = f.SetCellValue(summarySheet, "B11", run.StartedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A12", "Duration")
	_ = f.SetCellValue(summarySheet, "B12", run.Duration.String())
	if run.Failed {
		_ = f.SetCellValue(summarySheet, "A13", "Error")
		_ = f.SetCellValue(summarySheet, "B13", run.Error)
	}

	for i, h := range resultHeader {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetCellValue(resultsSheet, col+"1", h)
	}
	for i, r := range results {
		row := i + 2
		_ = f.SetCellValue(resultsSheet, fmt.Sprintf("A%d", row), r.RowIndex)
		_ = f.SetCellValue(resultsSheet, fmt.Sprintf("B%d", row), r.LineNumber)
		_ = f.SetCellValue(resultsSheet, fmt.Sprintf("C%d", row), r.RawSKU)
		_ = f.SetCellValue(resultsSheet, fmt.Sprintf("D%d", row), r.MSKU)
		_ = f.SetCellValue(resultsSheet, fmt.Sprintf("E%d", row), string(r.Status))
		_ = f.SetCellValue(resultsSheet, fmt.Sprintf("F%d", row), r.Reason)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunReportPDF renders a one-page PDF summary of a run.
func RunReportPDF(run *core.ProcessingRun) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Processing Run Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Run: %s", run.RunID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Marketplace: %s", run.Marketplace))
	pdf.Ln(5)
	if run.FileName != "" {
		pdf.Cell(0, 6, fmt.Sprintf("File: %s", run.FileName))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Started: %s", run.StartedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Duration: %s", run.Duration))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 6, "Rows", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)

	counts := []struct {
		label string
		n     int
	}{
		{"Total", run.TotalRows},
		{"Mapped", run.Mapped},
		{"Unmapped", run.Unmapped},
		{"Invalid", run.Invalid},
		{"Persisted", run.Persisted},
	}
	for _, c := range counts {
		pdf.CellFormat(60, 6, c.label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 6, strconv.Itoa(c.n), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if run.Failed {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, fmt.Sprintf("Run failed: %s", run.Error))
		pdf.Ln(5)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MappingsCSV renders the mapping table as CSV.
func MappingsCSV(mappings []mapping.Mapping) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(mappingHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, m := range mappings {
		record := []string{
			m.Marketplace,
			m.RawSKU,
			m.MSKU,
			m.CreatedAt.Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write mapping %s/%s: %w", m.Marketplace, m.RawSKU, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MappingsXLSX renders the mapping table as an XLSX workbook.
func MappingsXLSX(mappings []mapping.Mapping) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "mappings"
	f.SetSheetName("Sheet1", sheet)

	for i, h := range mappingHeader {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetCellValue(sheet, col+"1", h)
	}
	for i, m := range mappings {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), m.Marketplace)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), m.RawSKU)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), m.MSKU)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), m.CreatedAt.Format(time.RFC3339))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
