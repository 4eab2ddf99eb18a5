package ingest

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func amazonDef(t *testing.T) Definition {
	t.Helper()
	def, ok := Get("amazon")
	if !ok {
		t.Fatal("amazon marketplace not registered")
	}
	return def
}

// ============================================================================
// Marketplace Registry Tests
// ============================================================================

func TestRegistry_Keys(t *testing.T) {
	got := Keys()
	want := []string{"amazon", "ebay", "shopify"}
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	if _, ok := Get("etsy"); ok {
		t.Error("Get(etsy) = true, want false")
	}
}

// ============================================================================
// CSV Helper Tests
// ============================================================================

func TestCleanCell(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  plain  ", "plain"},
		{`="SKU-001"`, "SKU-001"},
		{"=42", "42"},
		{`"quoted"`, "quoted"},
		{"'single'", "single"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanCell(tt.in); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFindHeader_SkipsPreamble(t *testing.T) {
	records := [][]string{
		{"Amazon Order Report"},
		{""},
		{"Order ID", "Purchase Date", "SKU", "Quantity", "Item Price"},
		{"111-222", "2026-01-15", "GLD-01", "2", "9.99"},
	}
	if got := FindHeader(records, []string{"SKU", "Order ID"}); got != 2 {
		t.Errorf("FindHeader() = %d, want 2", got)
	}
}

func TestFindHeader_NotFound(t *testing.T) {
	records := [][]string{{"a", "b"}, {"c", "d"}}
	if got := FindHeader(records, []string{"SKU"}); got != -1 {
		t.Errorf("FindHeader() = %d, want -1", got)
	}
}

func TestParseCSV_RaggedRows(t *testing.T) {
	data := []byte("a,b,c\n1,2\n3,4,5,6\n")
	records, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(records) != 3 || len(records[1]) != 2 || len(records[2]) != 4 {
		t.Errorf("ParseCSV() shapes = %v", records)
	}
}

func TestSanitizeUTF8_ReplacesInvalidBytes(t *testing.T) {
	in := []byte{'a', 0xff, 'b'}
	got := sanitizeUTF8(in)
	if !strings.Contains(string(got), "�") {
		t.Errorf("sanitizeUTF8(%v) = %q, want replacement rune", in, got)
	}
}

// ============================================================================
// DecodeSales Tests
// ============================================================================

func TestDecodeSales_CleansAndDerivesTotal(t *testing.T) {
	def := amazonDef(t)
	records := [][]string{
		{"Order ID", "Purchase Date", "SKU", "Quantity", "Item Price"},
		{"111-222", "2026-01-15", "GLD-01", "3", "$1,250.50"},
		{"111-223", "not a date", "GLD-02", "", ""},
	}

	rows, err := DecodeSales(def, records)
	if err != nil {
		t.Fatalf("DecodeSales() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("DecodeSales() rows = %d, want 2", len(rows))
	}

	r := rows[0]
	if r.LineNumber != 2 || r.OrderNumber != "111-222" || r.RawSKU != "GLD-01" {
		t.Errorf("row 0 = %+v", r)
	}
	if !r.OrderDate.Valid {
		t.Error("row 0 OrderDate.Valid = false, want true")
	}
	if r.Quantity != 3 {
		t.Errorf("row 0 Quantity = %d, want 3", r.Quantity)
	}
	if !r.UnitPrice.Equal(decimal.RequireFromString("1250.50")) {
		t.Errorf("row 0 UnitPrice = %s, want 1250.50", r.UnitPrice)
	}
	if !r.TotalPrice.Equal(decimal.RequireFromString("3751.50")) {
		t.Errorf("row 0 TotalPrice = %s, want 3751.50", r.TotalPrice)
	}

	// Blank quantity and price zero-fill; malformed date stays invalid.
	r = rows[1]
	if r.Quantity != 0 || !r.UnitPrice.IsZero() || !r.TotalPrice.IsZero() {
		t.Errorf("row 1 = %+v, want zero-filled quantity and prices", r)
	}
	if r.OrderDate.Valid {
		t.Error("row 1 OrderDate.Valid = true, want false")
	}
}

func TestDecodeSales_MissingSKU(t *testing.T) {
	def := amazonDef(t)
	records := [][]string{
		{"Order ID", "Purchase Date", "SKU", "Quantity", "Item Price"},
		{"111-222", "2026-01-15", "GLD-01", "1", "5.00"},
		{"111-223", "2026-01-16", "", "1", "5.00"},
	}

	rows, err := DecodeSales(def, records)
	if err != nil {
		t.Fatalf("DecodeSales() error = %v", err)
	}
	if rows[0].MissingField != "" {
		t.Errorf("row 0 MissingField = %q, want empty", rows[0].MissingField)
	}
	if rows[1].MissingField != "SKU" {
		t.Errorf("row 1 MissingField = %q, want SKU", rows[1].MissingField)
	}
}

func TestDecodeSales_SkipsEmptyRows(t *testing.T) {
	def := amazonDef(t)
	records := [][]string{
		{"Order ID", "Purchase Date", "SKU", "Quantity", "Item Price"},
		{"", "", "", "", ""},
		{"111-222", "2026-01-15", "GLD-01", "1", "5.00"},
	}

	rows, err := DecodeSales(def, records)
	if err != nil {
		t.Fatalf("DecodeSales() error = %v", err)
	}
	if len(rows) != 1 || rows[0].LineNumber != 3 {
		t.Errorf("rows = %+v, want single row at line 3", rows)
	}
}

func TestDecodeSales_HeaderNotFound(t *testing.T) {
	_, err := DecodeSales(amazonDef(t), [][]string{{"foo", "bar"}})
	if err == nil || !strings.Contains(err.Error(), "header not found") {
		t.Errorf("DecodeSales() error = %v, want header not found", err)
	}
}

// ============================================================================
// DecodeMaster Tests
// ============================================================================

func TestDecodeMaster(t *testing.T) {
	records := [][]string{
		{"Mapping export"},
		{"SKU", "MSKU"},
		{"AMZ-1", "MSKU-1"},
		{"", ""},
		{"AMZ-2", "MSKU-2"},
	}

	rows, err := DecodeMaster(records)
	if err != nil {
		t.Fatalf("DecodeMaster() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("DecodeMaster() rows = %d, want 2", len(rows))
	}
	if rows[0].RawSKU != "AMZ-1" || rows[0].MSKU != "MSKU-1" || rows[0].LineNumber != 3 {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].LineNumber != 5 {
		t.Errorf("row 1 LineNumber = %d, want 5", rows[1].LineNumber)
	}
}

// ============================================================================
// Conversion Tests
// ============================================================================

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"9.99", "9.99"},
		{"$1,234.56", "1234.56"},
		{"(12.50)", "-12.5"},
		{"€5.00", "5"},
		{"", "0"},
		{"n/a", "0"},
	}
	for _, tt := range tests {
		got := parseMoney(tt.in)
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("parseMoney(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"3", 3},
		{"2.0", 2},
		{"", 0},
		{"abc", 0},
	}
	for _, tt := range tests {
		if got := parseQuantity(tt.in); got != tt.want {
			t.Errorf("parseQuantity(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	if d := parseDate("2026-01-15"); !d.Valid {
		t.Error("parseDate(ISO) invalid, want valid")
	}
	if d := parseDate("01/15/2026"); !d.Valid {
		t.Error("parseDate(US) invalid, want valid")
	}
	if d := parseDate("soon"); d.Valid {
		t.Error("parseDate(garbage) valid, want invalid")
	}
}
