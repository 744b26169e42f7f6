package executor

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/driftdb/drift/pkg/engine/internal/datatype"
	errs "github.com/driftdb/drift/pkg/engine/internal/errors"
	"github.com/driftdb/drift/pkg/engine/physical"
)

// expressionEvaluator binds uncompiled expression trees to a concrete schema.
type expressionEvaluator struct {
	mem memory.Allocator
}

func newExpressionEvaluator(mem memory.Allocator) expressionEvaluator {
	return expressionEvaluator{mem: mem}
}

type evalFunc func(input arrow.Record) (ColumnVector, error)

// CompiledExpr is an expression bound to a concrete schema, ready for
// repeated evaluation against batches of that schema. Compilation resolves
// column names to field indexes and type-checks every operator, so
// evaluation cannot fail on name resolution or operator signatures.
type CompiledExpr struct {
	fn evalFunc
	dt arrow.DataType
}

// DataType returns the static result type of the expression.
func (e *CompiledExpr) DataType() arrow.DataType {
	return e.dt
}

// Evaluate evaluates the expression against a batch. Evaluation is pure: it
// never mutates the batch, and the same batch always produces the same
// result. The caller owns the returned vector and must release it.
func (e *CompiledExpr) Evaluate(input arrow.Record) (ColumnVector, error) {
	return e.fn(input)
}

// compile binds an expression to a schema. It is a pure function of
// (expression, schema) and fails if a referenced column is absent from the
// schema or an operator has no implementation for its operand types.
func (e expressionEvaluator) compile(expr physical.Expression, schema *arrow.Schema) (*CompiledExpr, error) {
	switch expr := expr.(type) {

	case *physical.LiteralExpr:
		lit := expr.Literal
		return &CompiledExpr{
			dt: datatype.ToArrow(expr.ValueType()),
			fn: func(input arrow.Record) (ColumnVector, error) {
				return &Scalar{value: lit, rows: input.NumRows(), mem: e.mem}, nil
			},
		}, nil

	case *physical.ColumnExpr:
		indices := schema.FieldIndices(expr.Name)
		if len(indices) == 0 {
			return nil, fmt.Errorf("%w: column %q not found in schema", errs.ErrKey, expr.Name)
		}
		idx := indices[0]
		return &CompiledExpr{
			dt: schema.Field(idx).Type,
			fn: func(input arrow.Record) (ColumnVector, error) {
				arr := input.Column(idx)
				arr.Retain()
				return &Array{array: arr, rows: input.NumRows()}, nil
			},
		}, nil

	case *physical.UnaryExpr:
		left, err := e.compile(expr.Left, schema)
		if err != nil {
			return nil, err
		}
		fn, err := unaryFunctions.GetForSignature(expr.Op, left.dt)
		if err != nil {
			return nil, err
		}
		return &CompiledExpr{
			dt: fn.ret,
			fn: func(input arrow.Record) (ColumnVector, error) {
				val, err := left.Evaluate(input)
				if err != nil {
					return nil, err
				}
				defer val.Release()

				return fn.evaluate(e.mem, val)
			},
		}, nil

	case *physical.BinaryExpr:
		left, err := e.compile(expr.Left, schema)
		if err != nil {
			return nil, err
		}
		right, err := e.compile(expr.Right, schema)
		if err != nil {
			return nil, err
		}
		if left.dt.ID() != right.dt.ID() {
			return nil, fmt.Errorf("%w: operands of %s(%s, %s) have mismatching types %s and %s",
				errs.ErrType, expr.Op, expr.Left, expr.Right, left.dt, right.dt)
		}
		fn, err := binaryFunctions.GetForSignature(expr.Op, left.dt)
		if err != nil {
			return nil, err
		}
		return &CompiledExpr{
			dt: fn.ret,
			fn: func(input arrow.Record) (ColumnVector, error) {
				lhs, err := left.Evaluate(input)
				if err != nil {
					return nil, err
				}
				defer lhs.Release()

				rhs, err := right.Evaluate(input)
				if err != nil {
					return nil, err
				}
				defer rhs.Release()

				return fn.evaluate(e.mem, lhs, rhs)
			},
		}, nil
	}

	return nil, fmt.Errorf("unknown expression: %v", expr)
}
