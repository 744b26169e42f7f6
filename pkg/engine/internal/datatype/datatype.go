package datatype

import "fmt"

// DataType is the engine-level type of a literal or column.
type DataType uint32

const (
	Invalid DataType = iota // zero-value is an invalid type

	Null      // NULL value
	Bool      // Boolean value
	Integer   // Signed 64bit integer value
	Float     // 64bit floating point value
	String    // String value
	Timestamp // Nanosecond timestamp value
)

// String returns the string representation of the DataType.
func (t DataType) String() string {
	switch t {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Integer:
		return "integer"
	case Float:
		return "float"
	case String:
		return "string"
	case Timestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("invalid(%d)", t)
	}
}
