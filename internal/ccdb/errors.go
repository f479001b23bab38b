package ccdb

import (
	"fmt"

	"github.com/halld-offline/conddb/internal/model"
)

// PathNotFoundError reports that a namespace path does not exist in the
// constants store.
type PathNotFoundError struct {
	Path Path
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("ccdb: path not found: %s", e.Path)
}

// VariationNotFoundError reports that a named variation does not exist.
type VariationNotFoundError struct {
	Variation string
}

func (e *VariationNotFoundError) Error() string {
	return fmt.Sprintf("ccdb: variation not found: %s", e.Variation)
}

// NoAssignmentError reports that no assignment covers the requested run for
// the given path and variation (after the default-variation fallback).
type NoAssignmentError struct {
	Path      Path
	Run       model.RunNumber
	Variation string
}

func (e *NoAssignmentError) Error() string {
	return fmt.Sprintf("ccdb: no assignment for %s run %d variation %q",
		e.Path, e.Run, e.Variation)
}

// DecodeError reports a cell that could not be decoded into its declared
// column type. Row and Col are 0-indexed positions within the payload.
type DecodeError struct {
	Row      int
	Col      int
	Expected model.ColumnType
	Raw      string
	cause    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("ccdb: decode row %d col %d as %s: %q", e.Row, e.Col, e.Expected, e.Raw)
}

func (e *DecodeError) Unwrap() error { return e.cause }

// ShapeError reports a payload row whose cell count disagrees with the
// schema.
type ShapeError struct {
	Row   int
	Cells int
	Want  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("ccdb: row %d has %d cells, schema has %d columns", e.Row, e.Cells, e.Want)
}

// TypeError reports a typed accessor used against a column of a different
// declared type.
type TypeError struct {
	Column   string
	Expected model.ColumnType
	Actual   model.ColumnType
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("ccdb: column %q is %s, not %s", e.Column, e.Actual, e.Expected)
}

// ColumnNotFoundError reports an accessor against a column name the schema
// does not define.
type ColumnNotFoundError struct {
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("ccdb: no such column: %s", e.Column)
}

// RowOutOfRangeError reports a row index past the end of a table.
type RowOutOfRangeError struct {
	Index int
	Rows  int
}

func (e *RowOutOfRangeError) Error() string {
	return fmt.Sprintf("ccdb: row %d out of range (table has %d rows)", e.Index, e.Rows)
}
