package ccdb

import (
	"iter"
	"time"

	"github.com/halld-offline/conddb/internal/model"
)

// Table is a resolved, decoded constants payload: a schema plus
// column-major typed storage. Tables are immutable once constructed and
// safe to share across goroutines without locking.
type Table struct {
	schema  Schema
	nrows   int
	byName  map[string]int
	columns []columnData
}

// columnData holds one column's cells. Exactly one slice is non-nil,
// matching the declared column type.
type columnData struct {
	typ    model.ColumnType
	ints   []int64
	uints  []uint64
	floats []float64
	strs   []string
	bools  []bool
	times  []time.Time
}

func newColumnData(typ model.ColumnType, nrows int) columnData {
	cd := columnData{typ: typ}
	switch typ {
	case model.TypeInt:
		cd.ints = make([]int64, 0, nrows)
	case model.TypeUInt:
		cd.uints = make([]uint64, 0, nrows)
	case model.TypeFloat:
		cd.floats = make([]float64, 0, nrows)
	case model.TypeString:
		cd.strs = make([]string, 0, nrows)
	case model.TypeBool:
		cd.bools = make([]bool, 0, nrows)
	case model.TypeTime:
		cd.times = make([]time.Time, 0, nrows)
	}
	return cd
}

func (cd *columnData) append(v model.CellValue) {
	switch cd.typ {
	case model.TypeInt:
		n, _ := v.AsInt()
		cd.ints = append(cd.ints, n)
	case model.TypeUInt:
		n, _ := v.AsUInt()
		cd.uints = append(cd.uints, n)
	case model.TypeFloat:
		n, _ := v.AsFloat()
		cd.floats = append(cd.floats, n)
	case model.TypeString:
		s, _ := v.AsString()
		cd.strs = append(cd.strs, s)
	case model.TypeBool:
		b, _ := v.AsBool()
		cd.bools = append(cd.bools, b)
	case model.TypeTime:
		t, _ := v.AsTime()
		cd.times = append(cd.times, t)
	}
}

func (cd *columnData) cell(row int) model.CellValue {
	switch cd.typ {
	case model.TypeInt:
		return model.Int(cd.ints[row])
	case model.TypeUInt:
		return model.UInt(cd.uints[row])
	case model.TypeFloat:
		return model.Float(cd.floats[row])
	case model.TypeString:
		return model.Str(cd.strs[row])
	case model.TypeBool:
		return model.Bool(cd.bools[row])
	case model.TypeTime:
		return model.Time(cd.times[row])
	}
	return model.CellValue{}
}

// NewTable builds a table from already-typed rows, enforcing the shape
// invariant: every row has exactly len(schema.Columns) cells and every cell
// matches its declared column type. Decode already guarantees this for
// store payloads, but tables constructed directly (e.g. by tests) are
// checked too.
func NewTable(schema Schema, rows [][]model.CellValue) (*Table, error) {
	t := emptyTable(schema, len(rows))
	for i, row := range rows {
		if len(row) != len(schema.Columns) {
			return nil, &ShapeError{Row: i, Cells: len(row), Want: len(schema.Columns)}
		}
		for j, v := range row {
			want := schema.Columns[j].Type
			if v.Type() != want {
				return nil, &TypeError{Column: schema.Columns[j].Name, Expected: want, Actual: v.Type()}
			}
			t.columns[j].append(v)
		}
	}
	t.nrows = len(rows)
	return t, nil
}

// decodeTable decodes raw cell text against the schema. The first cell that
// fails to decode aborts the whole table with a *DecodeError carrying the
// position; rows are never silently dropped.
func decodeTable(schema Schema, raw [][]string) (*Table, error) {
	t := emptyTable(schema, len(raw))
	for i, row := range raw {
		if len(row) != len(schema.Columns) {
			return nil, &ShapeError{Row: i, Cells: len(row), Want: len(schema.Columns)}
		}
		for j, cell := range row {
			typ := schema.Columns[j].Type
			v, err := DecodeCell(cell, typ)
			if err != nil {
				return nil, &DecodeError{Row: i, Col: j, Expected: typ, Raw: cell, cause: err}
			}
			t.columns[j].append(v)
		}
	}
	t.nrows = len(raw)
	return t, nil
}

func emptyTable(schema Schema, nrows int) *Table {
	t := &Table{
		schema:  schema,
		byName:  make(map[string]int, len(schema.Columns)),
		columns: make([]columnData, len(schema.Columns)),
	}
	for i, c := range schema.Columns {
		t.byName[c.Name] = i
		t.columns[i] = newColumnData(c.Type, nrows)
	}
	return t
}

// Schema returns the table's column definition.
func (t *Table) Schema() Schema { return t.schema }

// NumRows returns the row count.
func (t *Table) NumRows() int { return t.nrows }

// NumColumns returns the column count.
func (t *Table) NumColumns() int { return len(t.schema.Columns) }

// Row returns a view over row i.
func (t *Table) Row(i int) (Row, error) {
	if i < 0 || i >= t.nrows {
		return Row{}, &RowOutOfRangeError{Index: i, Rows: t.nrows}
	}
	return Row{t: t, idx: i}, nil
}

// Rows yields a view for every row in order. The sequence is restartable:
// each range starts again from row 0.
func (t *Table) Rows() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for i := 0; i < t.nrows; i++ {
			if !yield(Row{t: t, idx: i}) {
				return
			}
		}
	}
}

// Column returns a view over the named column.
func (t *Table) Column(name string) (Col, error) {
	i, ok := t.byName[name]
	if !ok {
		return Col{}, &ColumnNotFoundError{Column: name}
	}
	return Col{t: t, idx: i}, nil
}

// Row is a read-only view over one table row. It borrows from the owning
// table by index, so it stays valid as long as the table is referenced.
type Row struct {
	t   *Table
	idx int
}

// Index returns the 0-based row number.
func (r Row) Index() int { return r.idx }

// Value returns the cell in the named column.
func (r Row) Value(column string) (model.CellValue, error) {
	i, ok := r.t.byName[column]
	if !ok {
		return model.CellValue{}, &ColumnNotFoundError{Column: column}
	}
	return r.t.columns[i].cell(r.idx), nil
}

func (r Row) typed(column string, want model.ColumnType) (int, error) {
	i, ok := r.t.byName[column]
	if !ok {
		return 0, &ColumnNotFoundError{Column: column}
	}
	if got := r.t.columns[i].typ; got != want {
		return 0, &TypeError{Column: column, Expected: want, Actual: got}
	}
	return i, nil
}

// Int extracts an Int cell, failing with a *TypeError on a declared-type
// mismatch.
func (r Row) Int(column string) (int64, error) {
	i, err := r.typed(column, model.TypeInt)
	if err != nil {
		return 0, err
	}
	return r.t.columns[i].ints[r.idx], nil
}

// UInt extracts a UInt cell.
func (r Row) UInt(column string) (uint64, error) {
	i, err := r.typed(column, model.TypeUInt)
	if err != nil {
		return 0, err
	}
	return r.t.columns[i].uints[r.idx], nil
}

// Float extracts a Float cell.
func (r Row) Float(column string) (float64, error) {
	i, err := r.typed(column, model.TypeFloat)
	if err != nil {
		return 0, err
	}
	return r.t.columns[i].floats[r.idx], nil
}

// String extracts a String cell.
func (r Row) String(column string) (string, error) {
	i, err := r.typed(column, model.TypeString)
	if err != nil {
		return "", err
	}
	return r.t.columns[i].strs[r.idx], nil
}

// Bool extracts a Bool cell.
func (r Row) Bool(column string) (bool, error) {
	i, err := r.typed(column, model.TypeBool)
	if err != nil {
		return false, err
	}
	return r.t.columns[i].bools[r.idx], nil
}

// Time extracts a Time cell.
func (r Row) Time(column string) (time.Time, error) {
	i, err := r.typed(column, model.TypeTime)
	if err != nil {
		return time.Time{}, err
	}
	return r.t.columns[i].times[r.idx], nil
}

// Col is a read-only view over one table column.
type Col struct {
	t   *Table
	idx int
}

// Name returns the column name.
func (c Col) Name() string { return c.t.schema.Columns[c.idx].Name }

// Type returns the declared column type.
func (c Col) Type() model.ColumnType { return c.t.columns[c.idx].typ }

// Len returns the number of cells (the table's row count).
func (c Col) Len() int { return c.t.nrows }

// Value returns the cell at row i.
func (c Col) Value(i int) (model.CellValue, error) {
	if i < 0 || i >= c.t.nrows {
		return model.CellValue{}, &RowOutOfRangeError{Index: i, Rows: c.t.nrows}
	}
	return c.t.columns[c.idx].cell(i), nil
}

func (c Col) typed(want model.ColumnType) error {
	if got := c.t.columns[c.idx].typ; got != want {
		return &TypeError{Column: c.Name(), Expected: want, Actual: got}
	}
	return nil
}

// Ints returns the whole column as int64s. The returned slice is shared
// with the table and must not be modified.
func (c Col) Ints() ([]int64, error) {
	if err := c.typed(model.TypeInt); err != nil {
		return nil, err
	}
	return c.t.columns[c.idx].ints, nil
}

// UInts returns the whole column as uint64s.
func (c Col) UInts() ([]uint64, error) {
	if err := c.typed(model.TypeUInt); err != nil {
		return nil, err
	}
	return c.t.columns[c.idx].uints, nil
}

// Floats returns the whole column as float64s.
func (c Col) Floats() ([]float64, error) {
	if err := c.typed(model.TypeFloat); err != nil {
		return nil, err
	}
	return c.t.columns[c.idx].floats, nil
}

// Strings returns the whole column as strings.
func (c Col) Strings() ([]string, error) {
	if err := c.typed(model.TypeString); err != nil {
		return nil, err
	}
	return c.t.columns[c.idx].strs, nil
}

// Bools returns the whole column as bools.
func (c Col) Bools() ([]bool, error) {
	if err := c.typed(model.TypeBool); err != nil {
		return nil, err
	}
	return c.t.columns[c.idx].bools, nil
}

// Times returns the whole column as times.
func (c Col) Times() ([]time.Time, error) {
	if err := c.typed(model.TypeTime); err != nil {
		return nil, err
	}
	return c.t.columns[c.idx].times, nil
}
