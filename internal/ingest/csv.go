package ingest

import (
	"bytes"
	"encoding/csv"
	"strings"
	"unicode/utf8"
)

// MaxHeaderSearchRows is the maximum number of rows to scan for the header.
var MaxHeaderSearchRows = 20

// ParseCSV parses raw CSV bytes into records, tolerating ragged rows and
// lazily quoted cells. Input is sanitized to valid UTF-8 first.
func ParseCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(sanitizeUTF8(data)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

// HeaderIndex maps column names (lowercase) to their position in the row.
type HeaderIndex map[string]int

// Lookup returns the position of a column by name, or -1 if absent.
func (h HeaderIndex) Lookup(name string) int {
	if i, ok := h[strings.ToLower(CleanCell(name))]; ok {
		return i
	}
	return -1
}

// MakeHeaderIndex creates a HeaderIndex from a header row.
// Keys are lowercased for case-insensitive matching.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		idx[key] = i
	}
	return idx
}

// FindHeader scans the leading rows for one containing all required
// column names. Returns the row index, or -1 if no row qualifies.
func FindHeader(records [][]string, required []string) int {
	maxRows := MaxHeaderSearchRows
	if len(records) < maxRows {
		maxRows = len(records)
	}

	for i := 0; i < maxRows; i++ {
		idx := MakeHeaderIndex(records[i])
		found := true
		for _, name := range required {
			if idx.Lookup(name) < 0 {
				found = false
				break
			}
		}
		if found {
			return i
		}
	}
	return -1
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// leading/trailing whitespace, Excel formula prefixes (="..."), and
// surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)

	return strings.TrimSpace(s)
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return CleanCell(row[i])
}
