package mapping

import (
	"context"
	"errors"
	"time"
)

// Mutation errors. These are returned to the caller synchronously and are
// surfaced to the end user verbatim.
var (
	// ErrDuplicateMapping is returned by Insert when a mapping already
	// exists for the (marketplace, raw SKU) pair and overwrite is not set.
	ErrDuplicateMapping = errors.New("mapping already exists for this SKU and marketplace")

	// ErrNotFound is returned by Delete when no mapping exists.
	ErrNotFound = errors.New("mapping not found")

	// ErrInvalidSKU is returned by AddMapping when the SKU or MSKU fails
	// the validation rules.
	ErrInvalidSKU = errors.New("invalid SKU")
)

// Mapping is a single raw-SKU to master-SKU entry.
// A raw SKU is unique per marketplace; entries are never implicitly
// overwritten.
type Mapping struct {
	Marketplace string    `json:"marketplace"`
	RawSKU      string    `json:"rawSku"`
	MSKU        string    `json:"msku"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store is the lookup table behind the Mapper.
// Implementations: MemoryStore (in-process) and postgres.Store (durable).
//
// Lookup must be safe for concurrent use; Insert and Delete must be
// serialized per marketplace so duplicate detection never loses an update.
type Store interface {
	// Lookup returns the MSKU for (marketplace, rawSKU), or found=false.
	Lookup(ctx context.Context, marketplace, rawSKU string) (msku string, found bool, err error)

	// Insert adds a mapping. Without overwrite it fails with
	// ErrDuplicateMapping when the pair already exists.
	Insert(ctx context.Context, m Mapping, overwrite bool) error

	// Delete removes a mapping, failing with ErrNotFound when absent.
	Delete(ctx context.Context, marketplace, rawSKU string) error

	// List returns mappings, optionally filtered by marketplace
	// (empty string means all), ordered by marketplace then raw SKU.
	List(ctx context.Context, marketplace string) ([]Mapping, error)

	// Count returns the total number of mappings.
	Count(ctx context.Context) (int64, error)
}
