package executor

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/driftdb/drift/pkg/engine/internal/datatype"
)

// ColumnVector represents columnar values produced by evaluated expressions:
// either a materialized array with one value per row, or a scalar logically
// broadcast over all rows of the batch it was evaluated against.
type ColumnVector interface {
	// ToArray materializes the vector as an Arrow array. The caller owns the
	// returned array and must release it.
	ToArray() arrow.Array
	// Value returns the value at the specified index position in the column
	// vector, or nil for null values.
	Value(i int) any
	// DataType returns the Arrow type of the vector.
	DataType() arrow.DataType
	// Len returns the length of the vector.
	Len() int64
	// Release decreases the reference count on the underlying Arrow array.
	Release()
}

// Scalar represents a single value repeated any number of times.
type Scalar struct {
	value datatype.Literal
	rows  int64
	mem   memory.Allocator
}

var _ ColumnVector = (*Scalar)(nil)

// ToArray implements ColumnVector. The scalar is broadcast into an array of
// the row count the scalar was created with.
func (v *Scalar) ToArray() arrow.Array {
	builder := array.NewBuilder(v.mem, v.DataType())
	defer builder.Release()

	switch builder := builder.(type) {
	case *array.NullBuilder:
		for range v.rows {
			builder.AppendNull()
		}
	case *array.BooleanBuilder:
		value := v.value.Bool()
		for range v.rows {
			builder.Append(value)
		}
	case *array.Int64Builder:
		value := v.value.Int()
		for range v.rows {
			builder.Append(value)
		}
	case *array.Float64Builder:
		value := v.value.Float()
		for range v.rows {
			builder.Append(value)
		}
	case *array.StringBuilder:
		value := v.value.Str()
		for range v.rows {
			builder.Append(value)
		}
	case *array.TimestampBuilder:
		value := arrow.Timestamp(v.value.Int())
		for range v.rows {
			builder.Append(value)
		}
	}
	return builder.NewArray()
}

// Value implements ColumnVector.
func (v *Scalar) Value(_ int) any {
	if v.value.IsNull() {
		return nil
	}
	return v.value.Any()
}

// DataType implements ColumnVector.
func (v *Scalar) DataType() arrow.DataType {
	return datatype.ToArrow(v.value.Type())
}

// Len implements ColumnVector.
func (v *Scalar) Len() int64 {
	return v.rows
}

// Release implements ColumnVector.
func (v *Scalar) Release() {}

// Array represents a column of data, stored as an [arrow.Array].
type Array struct {
	array arrow.Array
	rows  int64
}

var _ ColumnVector = (*Array)(nil)

// ToArray implements ColumnVector.
func (a *Array) ToArray() arrow.Array {
	a.array.Retain()
	return a.array
}

// Value implements ColumnVector.
func (a *Array) Value(i int) any {
	if a.array.IsNull(i) || !a.array.IsValid(i) {
		return nil
	}

	switch arr := a.array.(type) {
	case *array.Boolean:
		return arr.Value(i)
	case *array.Int64:
		return arr.Value(i)
	case *array.Float64:
		return arr.Value(i)
	case *array.String:
		return arr.Value(i)
	case *array.Timestamp:
		return int64(arr.Value(i))
	default:
		return nil
	}
}

// DataType implements ColumnVector.
func (a *Array) DataType() arrow.DataType {
	return a.array.DataType()
}

// Len implements ColumnVector.
func (a *Array) Len() int64 {
	return a.rows
}

// Release implements ColumnVector.
func (a *Array) Release() {
	a.array.Release()
}
