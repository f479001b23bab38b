package ccdb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/halld-offline/conddb/internal/model"
)

// delimiterEscape is the escape the store substitutes for a literal '|'
// inside string cells, since '|' separates cells in the payload.
const delimiterEscape = "&delimeter" // sic, the store's historical spelling

// DecodeCell parses one raw cell into a typed value.
//
// Int/UInt are base-10 with overflow detection. Float is standard floating
// syntax and accepts the nan/inf tokens the store emits (case-insensitive).
// Bool accepts 0/1/true/false, case-insensitive. Time is the canonical
// store form "YYYY-MM-DD HH:MM:SS" in UTC. String cells have the '|'
// escape undone and never fail.
func DecodeCell(raw string, typ model.ColumnType) (model.CellValue, error) {
	switch typ {
	case model.TypeInt:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return model.CellValue{}, err
		}
		return model.Int(v), nil
	case model.TypeUInt:
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return model.CellValue{}, err
		}
		return model.UInt(v), nil
	case model.TypeFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.CellValue{}, err
		}
		return model.Float(v), nil
	case model.TypeString:
		return model.Str(strings.ReplaceAll(raw, delimiterEscape, "|")), nil
	case model.TypeBool:
		switch strings.ToLower(raw) {
		case "0", "false":
			return model.Bool(false), nil
		case "1", "true":
			return model.Bool(true), nil
		}
		return model.CellValue{}, fmt.Errorf("not a bool literal")
	case model.TypeTime:
		t, err := model.ParseStoreTime(raw)
		if err != nil {
			return model.CellValue{}, err
		}
		return model.Time(t), nil
	}
	return model.CellValue{}, fmt.Errorf("unknown column type %v", typ)
}

// EncodeCell renders a typed value back into its raw store form. It is the
// inverse of DecodeCell for well-formed input.
func EncodeCell(v model.CellValue) string {
	if s, ok := v.AsString(); ok {
		return strings.ReplaceAll(s, "|", delimiterEscape)
	}
	return v.String()
}
