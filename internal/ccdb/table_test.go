package ccdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halld-offline/conddb/internal/model"
)

func gainsSchema() Schema {
	return Schema{Columns: []Column{
		{Name: "channel", Type: model.TypeInt},
		{Name: "gain", Type: model.TypeFloat},
		{Name: "note", Type: model.TypeString},
	}}
}

func TestNewTable_ShapeEnforced(t *testing.T) {
	_, err := NewTable(gainsSchema(), [][]model.CellValue{
		{model.Int(0), model.Float(1.0)},
	})
	var shape *ShapeError
	require.ErrorAs(t, err, &shape)
	assert.Equal(t, 0, shape.Row)
	assert.Equal(t, 2, shape.Cells)
	assert.Equal(t, 3, shape.Want)
}

func TestNewTable_TypeEnforced(t *testing.T) {
	_, err := NewTable(gainsSchema(), [][]model.CellValue{
		{model.Int(0), model.Str("oops"), model.Str("x")},
	})
	var typeErr *TypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "gain", typeErr.Column)
}

func TestTable_RowAndColumnAccess(t *testing.T) {
	table, err := NewTable(gainsSchema(), [][]model.CellValue{
		{model.Int(0), model.Float(1.00), model.Str("ok")},
		{model.Int(1), model.Float(1.05), model.Str("hot")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, table.NumRows())
	assert.Equal(t, 3, table.NumColumns())

	row, err := table.Row(1)
	require.NoError(t, err)
	ch, err := row.Int("channel")
	require.NoError(t, err)
	assert.Equal(t, int64(1), ch)
	gain, err := row.Float("gain")
	require.NoError(t, err)
	assert.Equal(t, 1.05, gain)

	// Typed accessor against the wrong column type.
	_, err = row.Int("gain")
	var typeErr *TypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "gain", typeErr.Column)

	// Unknown column.
	_, err = row.Value("nope")
	var notFound *ColumnNotFoundError
	assert.ErrorAs(t, err, &notFound)

	// Out-of-range row.
	_, err = table.Row(2)
	var oob *RowOutOfRangeError
	assert.ErrorAs(t, err, &oob)

	col, err := table.Column("gain")
	require.NoError(t, err)
	floats, err := col.Floats()
	require.NoError(t, err)
	assert.Equal(t, []float64{1.00, 1.05}, floats)
	_, err = col.Ints()
	assert.ErrorAs(t, err, &typeErr)
}

func TestTable_RowsIteratorRestartable(t *testing.T) {
	table, err := NewTable(gainsSchema(), [][]model.CellValue{
		{model.Int(0), model.Float(1), model.Str("")},
		{model.Int(1), model.Float(2), model.Str("")},
		{model.Int(2), model.Float(3), model.Str("")},
	})
	require.NoError(t, err)

	collect := func() []int64 {
		var out []int64
		for row := range table.Rows() {
			n, err := row.Int("channel")
			require.NoError(t, err)
			out = append(out, n)
		}
		return out
	}
	assert.Equal(t, []int64{0, 1, 2}, collect())
	assert.Equal(t, []int64{0, 1, 2}, collect(), "second range restarts from row 0")

	// Early break leaves later ranges unaffected.
	for row := range table.Rows() {
		if row.Index() == 0 {
			break
		}
	}
	assert.Equal(t, []int64{0, 1, 2}, collect())
}

func TestDecodeTable_PositionedError(t *testing.T) {
	_, err := decodeTable(gainsSchema(), [][]string{
		{"0", "1.0", "fine"},
		{"1", "not-a-float", "bad"},
	})
	var decode *DecodeError
	require.ErrorAs(t, err, &decode)
	assert.Equal(t, 1, decode.Row)
	assert.Equal(t, 1, decode.Col)
	assert.Equal(t, model.TypeFloat, decode.Expected)
	assert.Equal(t, "not-a-float", decode.Raw)
}
