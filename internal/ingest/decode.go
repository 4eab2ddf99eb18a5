package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var dateLayouts = []string{
	"2006-01-02", "2006/01/02", "2006.01.02",
	"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006",
	"Jan 2, 2006", "2 Jan 2006",
	"2006-01-02T15:04:05Z07:00", "2006-01-02 15:04:05",
	"20060102",
}

// DecodeSales extracts cleaned sales rows from parsed spreadsheet records
// using the marketplace's column map. Rows missing the SKU column value are
// kept with MissingField set so callers can classify them individually.
//
// Cleaning follows the usual spreadsheet-export conventions: blank quantity
// or price becomes zero, and the total is derived as quantity times unit
// price when the file does not carry its own total.
func DecodeSales(def Definition, records [][]string) ([]RowRecord, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	headerRow := FindHeader(records, []string{def.Columns.SKU})
	if headerRow < 0 {
		return nil, fmt.Errorf("header not found: no row contains column %q", def.Columns.SKU)
	}

	idx := MakeHeaderIndex(records[headerRow])
	orderCol := idx.Lookup(def.Columns.OrderNumber)
	dateCol := idx.Lookup(def.Columns.OrderDate)
	skuCol := idx.Lookup(def.Columns.SKU)
	qtyCol := idx.Lookup(def.Columns.Quantity)
	priceCol := idx.Lookup(def.Columns.UnitPrice)

	out := make([]RowRecord, 0, len(records)-headerRow-1)
	for i, row := range records[headerRow+1:] {
		if isEmptyRow(row) {
			continue
		}

		rec := RowRecord{
			LineNumber:  headerRow + i + 2, // 1-based, after header
			OrderNumber: cell(row, orderCol),
			OrderDate:   parseDate(cell(row, dateCol)),
			RawSKU:      cell(row, skuCol),
			Quantity:    parseQuantity(cell(row, qtyCol)),
			UnitPrice:   parseMoney(cell(row, priceCol)),
		}
		if rec.RawSKU == "" {
			rec.MissingField = def.Columns.SKU
		}
		rec.TotalPrice = rec.UnitPrice.Mul(decimal.NewFromInt(int64(rec.Quantity)))

		out = append(out, rec)
	}
	return out, nil
}

// masterColumns are the required headers of a master mapping file.
var masterColumns = []string{"SKU", "MSKU"}

// DecodeMaster extracts (raw SKU, MSKU) pairs from a parsed mapping file.
// Blank or malformed pairs are kept so the loader can report them per row.
func DecodeMaster(records [][]string) ([]MasterRow, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	headerRow := FindHeader(records, masterColumns)
	if headerRow < 0 {
		return nil, fmt.Errorf("header not found: expected columns %v", masterColumns)
	}

	idx := MakeHeaderIndex(records[headerRow])
	skuCol := idx.Lookup("SKU")
	mskuCol := idx.Lookup("MSKU")

	out := make([]MasterRow, 0, len(records)-headerRow-1)
	for i, row := range records[headerRow+1:] {
		if isEmptyRow(row) {
			continue
		}
		out = append(out, MasterRow{
			LineNumber: headerRow + i + 2,
			RawSKU:     cell(row, skuCol),
			MSKU:       cell(row, mskuCol),
		})
	}
	return out, nil
}

func parseDate(s string) pgtype.Date {
	if s == "" {
		return pgtype.Date{Valid: false}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtype.Date{Time: t, Valid: true}
		}
	}
	return pgtype.Date{Valid: false}
}

// parseQuantity reads an integer quantity, tolerating decimal exports
// like "2.0". Blank or malformed values become zero.
func parseQuantity(s string) int {
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

// parseMoney reads a currency amount, stripping symbols and thousands
// separators and honoring accounting-style negatives "(123.45)".
// Blank or malformed values become zero.
func parseMoney(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
