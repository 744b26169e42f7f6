package datatype

import (
	"fmt"
	"strconv"
	"time"
)

// LiteralType is the set of Go types that can back a [Literal].
type LiteralType interface {
	bool | int64 | float64 | string | time.Time
}

// Literal is a single typed constant value. Literals are immutable value
// objects; the zero value is the NULL literal.
type Literal struct {
	val any
	ty  DataType
}

// NewLiteral creates a new literal from a Go value.
func NewLiteral[T LiteralType](value T) Literal {
	switch v := any(value).(type) {
	case bool:
		return Literal{val: v, ty: Bool}
	case int64:
		return Literal{val: v, ty: Integer}
	case float64:
		return Literal{val: v, ty: Float}
	case string:
		return Literal{val: v, ty: String}
	case time.Time:
		return Literal{val: v.UnixNano(), ty: Timestamp}
	}
	panic(fmt.Sprintf("unsupported literal type %T", value))
}

// NewNullLiteral creates the NULL literal.
func NewNullLiteral() Literal {
	return Literal{ty: Null}
}

// Type returns the engine type of the literal value.
func (l Literal) Type() DataType {
	return l.ty
}

// IsNull reports whether the literal is NULL.
func (l Literal) IsNull() bool {
	return l.ty == Null || l.ty == Invalid
}

// Any returns the untyped value of the literal, or nil for NULL.
func (l Literal) Any() any {
	return l.val
}

// Bool returns the boolean value of the literal. It panics if the literal is
// not of type [Bool].
func (l Literal) Bool() bool { return l.val.(bool) }

// Int returns the integer value of the literal. It panics if the literal is
// not of type [Integer] or [Timestamp].
func (l Literal) Int() int64 { return l.val.(int64) }

// Float returns the float value of the literal. It panics if the literal is
// not of type [Float].
func (l Literal) Float() float64 { return l.val.(float64) }

// Str returns the string value of the literal. It panics if the literal is
// not of type [String].
func (l Literal) Str() string { return l.val.(string) }

// String returns the literal formatted the way it would appear in a query.
func (l Literal) String() string {
	switch l.ty {
	case Bool:
		return strconv.FormatBool(l.val.(bool))
	case Integer, Timestamp:
		return strconv.FormatInt(l.val.(int64), 10)
	case Float:
		return strconv.FormatFloat(l.val.(float64), 'f', -1, 64)
	case String:
		return strconv.Quote(l.val.(string))
	default:
		return "NULL"
	}
}
