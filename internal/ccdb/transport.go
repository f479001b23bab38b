package ccdb

import (
	"context"
	"time"

	"github.com/halld-offline/conddb/internal/model"
)

// RawColumn is one column definition as the store describes it, before type
// identifiers are parsed.
type RawColumn struct {
	Name   string
	TypeID string
}

// RawAssignment is one versioned snapshot of a table's data: its run-range
// validity, creation time, and the still-undecoded cell text row by row.
type RawAssignment struct {
	RunMin    model.RunNumber
	RunMax    model.RunNumber
	CreatedAt time.Time
	Rows      [][]string
}

// Transport fetches raw schema and assignment rows from the constants
// store. Implementations must be safe for concurrent use. Errors other than
// the typed ones defined in this package are treated as transport failures
// and are never cached.
type Transport interface {
	// FetchSchema returns the ordered column definitions for a path, or a
	// *PathNotFoundError.
	FetchSchema(ctx context.Context, path Path) ([]RawColumn, error)

	// FetchAssignments returns every assignment published for the path
	// under the named variation, in no particular order. An unknown
	// variation yields a *VariationNotFoundError.
	FetchAssignments(ctx context.Context, path Path, variation string) ([]RawAssignment, error)
}
