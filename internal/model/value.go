// Package model defines the domain types shared by the CCDB and RCDB
// accessor layers: run numbers, the closed set of cell value types, and
// the tagged-union CellValue carried through schemas, tables, and run
// conditions.
package model

import (
	"fmt"
	"strconv"
	"time"
)

// RunNumber identifies a single data-taking run.
type RunNumber uint32

// MaxRunNumber is the largest run number either store will ever hold.
const MaxRunNumber RunNumber = 2_147_483_647

// ColumnType is the closed set of primitive types a table column or run
// condition may carry.
type ColumnType int

const (
	TypeInt ColumnType = iota
	TypeUInt
	TypeFloat
	TypeString
	TypeBool
	TypeTime
)

// String returns the store identifier for the type.
func (t ColumnType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeUInt:
		return "uint"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	case TypeTime:
		return "time"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// ParseColumnType maps a store type identifier onto a ColumnType. The CCDB
// schema uses wider identifiers (long/ulong/double) that collapse onto the
// 64-bit types here; the RCDB schema calls strings "text".
func ParseColumnType(s string) (ColumnType, bool) {
	switch s {
	case "int", "long":
		return TypeInt, true
	case "uint", "ulong":
		return TypeUInt, true
	case "float", "double":
		return TypeFloat, true
	case "string", "text":
		return TypeString, true
	case "bool":
		return TypeBool, true
	case "time":
		return TypeTime, true
	}
	return 0, false
}

// CellValue is a single typed value: one table cell or one run condition.
// The zero value is the Int 0. Values are immutable once constructed.
type CellValue struct {
	typ ColumnType
	i   int64
	u   uint64
	f   float64
	s   string
	b   bool
	t   time.Time
}

// Int constructs an Int cell.
func Int(v int64) CellValue { return CellValue{typ: TypeInt, i: v} }

// UInt constructs a UInt cell.
func UInt(v uint64) CellValue { return CellValue{typ: TypeUInt, u: v} }

// Float constructs a Float cell.
func Float(v float64) CellValue { return CellValue{typ: TypeFloat, f: v} }

// Str constructs a String cell. (String is taken by the Stringer method.)
func Str(v string) CellValue { return CellValue{typ: TypeString, s: v} }

// Bool constructs a Bool cell.
func Bool(v bool) CellValue { return CellValue{typ: TypeBool, b: v} }

// Time constructs a Time cell. The value is stored in UTC.
func Time(v time.Time) CellValue { return CellValue{typ: TypeTime, t: v.UTC()} }

// Type reports which variant the cell holds.
func (v CellValue) Type() ColumnType { return v.typ }

// AsInt returns the Int payload. The second return is false on a type
// mismatch.
func (v CellValue) AsInt() (int64, bool) { return v.i, v.typ == TypeInt }

// AsUInt returns the UInt payload.
func (v CellValue) AsUInt() (uint64, bool) { return v.u, v.typ == TypeUInt }

// AsFloat returns the Float payload.
func (v CellValue) AsFloat() (float64, bool) { return v.f, v.typ == TypeFloat }

// AsString returns the String payload.
func (v CellValue) AsString() (string, bool) { return v.s, v.typ == TypeString }

// AsBool returns the Bool payload.
func (v CellValue) AsBool() (bool, bool) { return v.b, v.typ == TypeBool }

// AsTime returns the Time payload.
func (v CellValue) AsTime() (time.Time, bool) { return v.t, v.typ == TypeTime }

// Equal reports whether two cells hold the same type and payload.
// Float comparison follows IEEE semantics, so NaN != NaN.
func (v CellValue) Equal(o CellValue) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeInt:
		return v.i == o.i
	case TypeUInt:
		return v.u == o.u
	case TypeFloat:
		return v.f == o.f
	case TypeString:
		return v.s == o.s
	case TypeBool:
		return v.b == o.b
	case TypeTime:
		return v.t.Equal(o.t)
	}
	return false
}

// String renders the cell in its store textual form.
func (v CellValue) String() string {
	switch v.typ {
	case TypeInt:
		return strconv.FormatInt(v.i, 10)
	case TypeUInt:
		return strconv.FormatUint(v.u, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeString:
		return v.s
	case TypeBool:
		if v.b {
			return "true"
		}
		return "false"
	case TypeTime:
		return v.t.UTC().Format(TimeLayout)
	}
	return ""
}
