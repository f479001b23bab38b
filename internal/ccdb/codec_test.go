package ccdb

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halld-offline/conddb/internal/model"
)

func TestDecodeCell(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		typ  model.ColumnType
		want model.CellValue
	}{
		{"int", "-17", model.TypeInt, model.Int(-17)},
		{"uint max", "18446744073709551615", model.TypeUInt, model.UInt(math.MaxUint64)},
		{"float", "3.25", model.TypeFloat, model.Float(3.25)},
		{"float exponent", "1e-3", model.TypeFloat, model.Float(0.001)},
		{"float inf", "inf", model.TypeFloat, model.Float(math.Inf(1))},
		{"string plain", "hello", model.TypeString, model.Str("hello")},
		{"string escaped pipe", "a&delimeterb", model.TypeString, model.Str("a|b")},
		{"bool 0", "0", model.TypeBool, model.Bool(false)},
		{"bool TRUE", "TRUE", model.TypeBool, model.Bool(true)},
		{"time", "2024-06-01 00:00:00", model.TypeTime,
			model.Time(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCell(tt.raw, tt.typ)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestDecodeCell_NaN(t *testing.T) {
	got, err := DecodeCell("nan", model.TypeFloat)
	require.NoError(t, err)
	f, ok := got.AsFloat()
	require.True(t, ok)
	assert.True(t, math.IsNaN(f))
}

func TestDecodeCell_Malformed(t *testing.T) {
	tests := []struct {
		raw string
		typ model.ColumnType
	}{
		{"abc", model.TypeInt},
		{"1.5", model.TypeInt},
		{"-1", model.TypeUInt},
		{"18446744073709551616", model.TypeUInt}, // overflow
		{"abc", model.TypeFloat},
		{"yes", model.TypeBool},
		{"2", model.TypeBool},
		{"June 1st", model.TypeTime},
	}
	for _, tt := range tests {
		_, err := DecodeCell(tt.raw, tt.typ)
		assert.Error(t, err, "DecodeCell(%q, %s)", tt.raw, tt.typ)
	}
}

func TestEncodeCell_RoundTrip(t *testing.T) {
	values := []model.CellValue{
		model.Int(-5),
		model.UInt(12),
		model.Float(2.5),
		model.Str("with|pipe"),
		model.Bool(true),
		model.Time(time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)),
	}
	for _, v := range values {
		raw := EncodeCell(v)
		back, err := DecodeCell(raw, v.Type())
		require.NoError(t, err, "decode %q", raw)
		assert.True(t, v.Equal(back), "round trip %s via %q gave %s", v, raw, back)
	}
}

func TestEncodeCell_EscapesPipes(t *testing.T) {
	assert.Equal(t, "a&delimeterb", EncodeCell(model.Str("a|b")))
}
