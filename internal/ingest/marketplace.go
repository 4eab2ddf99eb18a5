// Package ingest parses uploaded sales and mapping spreadsheets into
// typed row records. It has no database dependencies and can be used
// by any frontend.
package ingest

import (
	"fmt"
	"sort"
	"sync"
)

// ColumnMap names the spreadsheet columns a marketplace export uses for
// each row field. Matching is case-insensitive after cell cleanup.
type ColumnMap struct {
	OrderNumber string
	OrderDate   string
	SKU         string
	Quantity    string
	UnitPrice   string
}

// Definition describes one supported marketplace export format.
type Definition struct {
	Key     string // Unique identifier: "amazon"
	Label   string // Display name: "Amazon"
	Columns ColumnMap
}

var (
	registry   = make(map[string]Definition)
	registryMu sync.RWMutex
)

// Register adds a marketplace definition to the registry.
// Panics if a marketplace with the same key is already registered.
func Register(def Definition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Key]; exists {
		panic(fmt.Sprintf("marketplace already registered: %s", def.Key))
	}
	registry[def.Key] = def
}

// Get returns a marketplace definition by key.
// Returns false if not found.
func Get(key string) (Definition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns all registered marketplace definitions, sorted by key.
func All() []Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Definition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result
}

// Keys returns all registered marketplace keys, sorted alphabetically.
func Keys() []string {
	defs := All()
	keys := make([]string, len(defs))
	for i, def := range defs {
		keys[i] = def.Key
	}
	return keys
}

func init() {
	Register(Definition{
		Key:   "amazon",
		Label: "Amazon",
		Columns: ColumnMap{
			OrderNumber: "Order ID",
			OrderDate:   "Purchase Date",
			SKU:         "SKU",
			Quantity:    "Quantity",
			UnitPrice:   "Item Price",
		},
	})
	Register(Definition{
		Key:   "ebay",
		Label: "eBay",
		Columns: ColumnMap{
			OrderNumber: "Transaction ID",
			OrderDate:   "Sale Date",
			SKU:         "Custom Label",
			Quantity:    "Quantity",
			UnitPrice:   "Sale Price",
		},
	})
	Register(Definition{
		Key:   "shopify",
		Label: "Shopify",
		Columns: ColumnMap{
			OrderNumber: "Order Number",
			OrderDate:   "Created At",
			SKU:         "Variant SKU",
			Quantity:    "Quantity",
			UnitPrice:   "Price",
		},
	})
}
