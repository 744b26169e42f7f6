package datatype

import "github.com/apache/arrow-go/v18/arrow"

var (
	// ArrowType is the lookup table from engine type to the Arrow type it is
	// physically stored as.
	ArrowType = struct {
		Null      arrow.DataType
		Bool      arrow.DataType
		Integer   arrow.DataType
		Float     arrow.DataType
		String    arrow.DataType
		Timestamp arrow.DataType
	}{
		Null:      arrow.Null,
		Bool:      arrow.FixedWidthTypes.Boolean,
		Integer:   arrow.PrimitiveTypes.Int64,
		Float:     arrow.PrimitiveTypes.Float64,
		String:    arrow.BinaryTypes.String,
		Timestamp: arrow.FixedWidthTypes.Timestamp_ns,
	}

	toArrow = map[DataType]arrow.DataType{
		Null:      ArrowType.Null,
		Bool:      ArrowType.Bool,
		Integer:   ArrowType.Integer,
		Float:     ArrowType.Float,
		String:    ArrowType.String,
		Timestamp: ArrowType.Timestamp,
	}
)

// ToArrow returns the Arrow representation of the engine type, or nil if the
// type has no Arrow representation.
func ToArrow(t DataType) arrow.DataType {
	return toArrow[t]
}

// FromArrow returns the engine type that corresponds to the given Arrow type.
// The second return value reports whether the Arrow type is supported by the
// engine.
func FromArrow(t arrow.DataType) (DataType, bool) {
	switch t.ID() {
	case arrow.NULL:
		return Null, true
	case arrow.BOOL:
		return Bool, true
	case arrow.INT64:
		return Integer, true
	case arrow.FLOAT64:
		return Float, true
	case arrow.STRING:
		return String, true
	case arrow.TIMESTAMP:
		return Timestamp, true
	}
	return Invalid, false
}
