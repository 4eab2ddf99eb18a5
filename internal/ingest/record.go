package ingest

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// RowRecord is one cleaned sales row extracted from an uploaded file.
//
// MissingField is non-empty when a required column was absent or blank
// in the source row; such records carry no usable SKU and are classified
// downstream without a mapping lookup.
type RowRecord struct {
	LineNumber  int // 1-based line in the source file
	OrderNumber string
	OrderDate   pgtype.Date
	RawSKU      string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal

	MissingField string
}

// MasterRow is one row of an uploaded master mapping file (SKU, MSKU columns).
type MasterRow struct {
	LineNumber int
	RawSKU     string
	MSKU       string
}
