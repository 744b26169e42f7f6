package physical

import (
	"fmt"

	"github.com/driftdb/drift/pkg/engine/internal/datatype"
	"github.com/driftdb/drift/pkg/engine/internal/types"
)

// ExpressionType represents the type of expression in the physical plan.
type ExpressionType uint32

const (
	_ ExpressionType = iota // zero-value is an invalid type

	ExprTypeUnary
	ExprTypeBinary
	ExprTypeLiteral
	ExprTypeColumn
)

// String returns the string representation of the [ExpressionType].
func (t ExpressionType) String() string {
	switch t {
	case ExprTypeUnary:
		return "UnaryExpression"
	case ExprTypeBinary:
		return "BinaryExpression"
	case ExprTypeLiteral:
		return "LiteralExpression"
	case ExprTypeColumn:
		return "ColumnExpression"
	default:
		panic(fmt.Sprintf("unknown expression type %d", t))
	}
}

// Expression is the common interface for all expressions in a physical plan.
// Expressions are immutable values shared by reference: a plan node owns the
// uncompiled expression tree and concurrently executing partitions read it
// without synchronization.
type Expression interface {
	fmt.Stringer
	Type() ExpressionType
	isExpr()
}

// UnaryExpr applies a unary operator to an expression.
type UnaryExpr struct {
	// Left is the expression being operated on
	Left Expression
	// Op is the unary operator to apply to the expression
	Op types.UnaryOp
}

func (*UnaryExpr) isExpr() {}

func (e *UnaryExpr) String() string {
	return fmt.Sprintf("%s(%s)", e.Op, e.Left)
}

// Type returns the type of the [UnaryExpr].
func (*UnaryExpr) Type() ExpressionType {
	return ExprTypeUnary
}

// BinaryExpr applies a binary operator to a left and a right expression.
type BinaryExpr struct {
	Left, Right Expression
	Op          types.BinaryOp
}

func (*BinaryExpr) isExpr() {}

func (e *BinaryExpr) String() string {
	return fmt.Sprintf("%s(%s, %s)", e.Op, e.Left, e.Right)
}

// Type returns the type of the [BinaryExpr].
func (*BinaryExpr) Type() ExpressionType {
	return ExprTypeBinary
}

// LiteralExpr is a constant value in an expression tree.
type LiteralExpr struct {
	datatype.Literal
}

func (*LiteralExpr) isExpr() {}

// String returns the string representation of the literal value.
func (e *LiteralExpr) String() string {
	return e.Literal.String()
}

// Type returns the type of the [LiteralExpr].
func (*LiteralExpr) Type() ExpressionType {
	return ExprTypeLiteral
}

// ValueType returns the kind of value represented by the literal.
func (e *LiteralExpr) ValueType() datatype.DataType {
	return e.Literal.Type()
}

// NewLiteral creates a new literal expression from a Go value.
func NewLiteral[T datatype.LiteralType](value T) *LiteralExpr {
	return &LiteralExpr{Literal: datatype.NewLiteral(value)}
}

// NewNullLiteral creates a new NULL literal expression.
func NewNullLiteral() *LiteralExpr {
	return &LiteralExpr{Literal: datatype.NewNullLiteral()}
}

// ColumnExpr references a column of the input batch by name. Resolution
// against a concrete schema happens at compile time, not at plan
// construction time.
type ColumnExpr struct {
	Name string
}

// NewColumnExpr creates a new column reference expression.
func NewColumnExpr(name string) *ColumnExpr {
	return &ColumnExpr{Name: name}
}

func (e *ColumnExpr) isExpr() {}

// String returns the string representation of the column expression.
func (e *ColumnExpr) String() string {
	return e.Name
}

// Type returns the type of the [ColumnExpr].
func (e *ColumnExpr) Type() ExpressionType {
	return ExprTypeColumn
}
