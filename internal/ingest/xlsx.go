package ingest

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseXLSX reads the first sheet of an XLSX workbook into records,
// the same shape ParseCSV produces.
func ParseXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// ParseFile dispatches on the file extension: .xlsx workbooks go through
// excelize, everything else is treated as CSV.
func ParseFile(fileName string, data []byte) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx":
		return ParseXLSX(data)
	default:
		return ParseCSV(data)
	}
}
