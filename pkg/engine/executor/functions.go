package executor

import (
	"cmp"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/driftdb/drift/pkg/engine/internal/datatype"
	errs "github.com/driftdb/drift/pkg/engine/internal/errors"
	"github.com/driftdb/drift/pkg/engine/internal/types"
)

// unaryFunc is a vectorized kernel for one (operator, operand type)
// signature. ret is the static result type of the kernel.
type unaryFunc struct {
	ret      arrow.DataType
	evaluate func(mem memory.Allocator, v ColumnVector) (ColumnVector, error)
}

// binaryFunc is a vectorized kernel for one (operator, operand type)
// signature. Both operands share the operand type.
type binaryFunc struct {
	ret      arrow.DataType
	evaluate func(mem memory.Allocator, lhs, rhs ColumnVector) (ColumnVector, error)
}

type unarySignature struct {
	op      types.UnaryOp
	operand arrow.Type
}

type binarySignature struct {
	op      types.BinaryOp
	operand arrow.Type
}

type unaryFunctionRegistry struct {
	reg map[unarySignature]unaryFunc
}

func (r *unaryFunctionRegistry) register(op types.UnaryOp, operand arrow.DataType, fn unaryFunc) {
	r.reg[unarySignature{op: op, operand: operand.ID()}] = fn
}

// GetForSignature returns the kernel for the given operator and operand type.
func (r *unaryFunctionRegistry) GetForSignature(op types.UnaryOp, operand arrow.DataType) (unaryFunc, error) {
	fn, ok := r.reg[unarySignature{op: op, operand: operand.ID()}]
	if !ok {
		return unaryFunc{}, fmt.Errorf("%w: unary operator %s for type %s", errs.ErrNotImplemented, op, operand)
	}
	return fn, nil
}

type binaryFunctionRegistry struct {
	reg map[binarySignature]binaryFunc
}

func (r *binaryFunctionRegistry) register(op types.BinaryOp, operand arrow.DataType, fn binaryFunc) {
	r.reg[binarySignature{op: op, operand: operand.ID()}] = fn
}

// GetForSignature returns the kernel for the given operator and operand type.
func (r *binaryFunctionRegistry) GetForSignature(op types.BinaryOp, operand arrow.DataType) (binaryFunc, error) {
	fn, ok := r.reg[binarySignature{op: op, operand: operand.ID()}]
	if !ok {
		return binaryFunc{}, fmt.Errorf("%w: binary operator %s for type %s", errs.ErrNotImplemented, op, operand)
	}
	return fn, nil
}

// compareFn builds a kernel that applies cmp element-wise and produces a
// boolean vector. Rows where either operand is null produce null.
func compareFn[T any](compare func(a, b T) bool) func(memory.Allocator, ColumnVector, ColumnVector) (ColumnVector, error) {
	return func(mem memory.Allocator, lhs, rhs ColumnVector) (ColumnVector, error) {
		rows := lhs.Len()
		builder := array.NewBooleanBuilder(mem)
		defer builder.Release()
		builder.Reserve(int(rows))

		for i := range int(rows) {
			lv, rv := lhs.Value(i), rhs.Value(i)
			if lv == nil || rv == nil {
				builder.AppendNull()
				continue
			}
			l, lok := lv.(T)
			r, rok := rv.(T)
			if !lok || !rok {
				return nil, fmt.Errorf("%w: unexpected operand types %T and %T at row %d", errs.ErrType, lv, rv, i)
			}
			builder.Append(compare(l, r))
		}
		return &Array{array: builder.NewArray(), rows: rows}, nil
	}
}

// registerOrdered registers the six ordering comparisons for an operand type
// whose values are represented as T.
func registerOrdered[T cmp.Ordered](r *binaryFunctionRegistry, operand arrow.DataType) {
	ret := datatype.ArrowType.Bool
	r.register(types.BinaryOpEq, operand, binaryFunc{ret: ret, evaluate: compareFn(func(a, b T) bool { return a == b })})
	r.register(types.BinaryOpNeq, operand, binaryFunc{ret: ret, evaluate: compareFn(func(a, b T) bool { return a != b })})
	r.register(types.BinaryOpGt, operand, binaryFunc{ret: ret, evaluate: compareFn(func(a, b T) bool { return a > b })})
	r.register(types.BinaryOpGte, operand, binaryFunc{ret: ret, evaluate: compareFn(func(a, b T) bool { return a >= b })})
	r.register(types.BinaryOpLt, operand, binaryFunc{ret: ret, evaluate: compareFn(func(a, b T) bool { return a < b })})
	r.register(types.BinaryOpLte, operand, binaryFunc{ret: ret, evaluate: compareFn(func(a, b T) bool { return a <= b })})
}

// arithInt64 builds an element-wise integer arithmetic kernel. apply may fail,
// e.g. on division by zero.
func arithInt64(apply func(a, b int64) (int64, error)) func(memory.Allocator, ColumnVector, ColumnVector) (ColumnVector, error) {
	return func(mem memory.Allocator, lhs, rhs ColumnVector) (ColumnVector, error) {
		rows := lhs.Len()
		builder := array.NewInt64Builder(mem)
		defer builder.Release()
		builder.Reserve(int(rows))

		for i := range int(rows) {
			lv, rv := lhs.Value(i), rhs.Value(i)
			if lv == nil || rv == nil {
				builder.AppendNull()
				continue
			}
			l, lok := lv.(int64)
			r, rok := rv.(int64)
			if !lok || !rok {
				return nil, fmt.Errorf("%w: unexpected operand types %T and %T at row %d", errs.ErrType, lv, rv, i)
			}
			v, err := apply(l, r)
			if err != nil {
				return nil, fmt.Errorf("%s at row %d", err, i)
			}
			builder.Append(v)
		}
		return &Array{array: builder.NewArray(), rows: rows}, nil
	}
}

// arithFloat64 builds an element-wise float arithmetic kernel.
func arithFloat64(apply func(a, b float64) float64) func(memory.Allocator, ColumnVector, ColumnVector) (ColumnVector, error) {
	return func(mem memory.Allocator, lhs, rhs ColumnVector) (ColumnVector, error) {
		rows := lhs.Len()
		builder := array.NewFloat64Builder(mem)
		defer builder.Release()
		builder.Reserve(int(rows))

		for i := range int(rows) {
			lv, rv := lhs.Value(i), rhs.Value(i)
			if lv == nil || rv == nil {
				builder.AppendNull()
				continue
			}
			l, lok := lv.(float64)
			r, rok := rv.(float64)
			if !lok || !rok {
				return nil, fmt.Errorf("%w: unexpected operand types %T and %T at row %d", errs.ErrType, lv, rv, i)
			}
			builder.Append(apply(l, r))
		}
		return &Array{array: builder.NewArray(), rows: rows}, nil
	}
}

var unaryFunctions = func() *unaryFunctionRegistry {
	r := &unaryFunctionRegistry{reg: make(map[unarySignature]unaryFunc)}

	r.register(types.UnaryOpNot, datatype.ArrowType.Bool, unaryFunc{
		ret: datatype.ArrowType.Bool,
		evaluate: func(mem memory.Allocator, v ColumnVector) (ColumnVector, error) {
			rows := v.Len()
			builder := array.NewBooleanBuilder(mem)
			defer builder.Release()
			builder.Reserve(int(rows))

			for i := range int(rows) {
				val := v.Value(i)
				if val == nil {
					builder.AppendNull()
					continue
				}
				b, ok := val.(bool)
				if !ok {
					return nil, fmt.Errorf("%w: unexpected operand type %T at row %d", errs.ErrType, val, i)
				}
				builder.Append(!b)
			}
			return &Array{array: builder.NewArray(), rows: rows}, nil
		},
	})

	r.register(types.UnaryOpNeg, datatype.ArrowType.Integer, unaryFunc{
		ret:      datatype.ArrowType.Integer,
		evaluate: negFn[int64](array.NewInt64Builder),
	})
	r.register(types.UnaryOpNeg, datatype.ArrowType.Float, unaryFunc{
		ret:      datatype.ArrowType.Float,
		evaluate: negFn[float64](array.NewFloat64Builder),
	})

	return r
}()

type numberBuilder[T int64 | float64] interface {
	array.Builder
	Append(T)
}

func negFn[T int64 | float64, B numberBuilder[T]](newBuilder func(memory.Allocator) B) func(memory.Allocator, ColumnVector) (ColumnVector, error) {
	return func(mem memory.Allocator, v ColumnVector) (ColumnVector, error) {
		rows := v.Len()
		builder := newBuilder(mem)
		defer builder.Release()
		builder.Reserve(int(rows))

		for i := range int(rows) {
			val := v.Value(i)
			if val == nil {
				builder.AppendNull()
				continue
			}
			n, ok := val.(T)
			if !ok {
				return nil, fmt.Errorf("%w: unexpected operand type %T at row %d", errs.ErrType, val, i)
			}
			builder.Append(-n)
		}
		return &Array{array: builder.NewArray(), rows: rows}, nil
	}
}

var binaryFunctions = func() *binaryFunctionRegistry {
	r := &binaryFunctionRegistry{reg: make(map[binarySignature]binaryFunc)}

	boolType := datatype.ArrowType.Bool
	intType := datatype.ArrowType.Integer
	floatType := datatype.ArrowType.Float

	// Comparisons. Timestamps are compared through their int64 nanosecond
	// representation.
	registerOrdered[int64](r, intType)
	registerOrdered[float64](r, floatType)
	registerOrdered[string](r, datatype.ArrowType.String)
	registerOrdered[int64](r, datatype.ArrowType.Timestamp)
	r.register(types.BinaryOpEq, boolType, binaryFunc{ret: boolType, evaluate: compareFn(func(a, b bool) bool { return a == b })})
	r.register(types.BinaryOpNeq, boolType, binaryFunc{ret: boolType, evaluate: compareFn(func(a, b bool) bool { return a != b })})

	// Logical operations.
	r.register(types.BinaryOpAnd, boolType, binaryFunc{ret: boolType, evaluate: compareFn(func(a, b bool) bool { return a && b })})
	r.register(types.BinaryOpOr, boolType, binaryFunc{ret: boolType, evaluate: compareFn(func(a, b bool) bool { return a || b })})

	// Integer arithmetic.
	r.register(types.BinaryOpAdd, intType, binaryFunc{ret: intType, evaluate: arithInt64(func(a, b int64) (int64, error) { return a + b, nil })})
	r.register(types.BinaryOpSub, intType, binaryFunc{ret: intType, evaluate: arithInt64(func(a, b int64) (int64, error) { return a - b, nil })})
	r.register(types.BinaryOpMul, intType, binaryFunc{ret: intType, evaluate: arithInt64(func(a, b int64) (int64, error) { return a * b, nil })})
	r.register(types.BinaryOpDiv, intType, binaryFunc{ret: intType, evaluate: arithInt64(func(a, b int64) (int64, error) {
		if b == 0 {
			return 0, fmt.Errorf("integer division by zero")
		}
		return a / b, nil
	})})
	r.register(types.BinaryOpMod, intType, binaryFunc{ret: intType, evaluate: arithInt64(func(a, b int64) (int64, error) {
		if b == 0 {
			return 0, fmt.Errorf("integer modulo by zero")
		}
		return a % b, nil
	})})

	// Float arithmetic.
	r.register(types.BinaryOpAdd, floatType, binaryFunc{ret: floatType, evaluate: arithFloat64(func(a, b float64) float64 { return a + b })})
	r.register(types.BinaryOpSub, floatType, binaryFunc{ret: floatType, evaluate: arithFloat64(func(a, b float64) float64 { return a - b })})
	r.register(types.BinaryOpMul, floatType, binaryFunc{ret: floatType, evaluate: arithFloat64(func(a, b float64) float64 { return a * b })})
	r.register(types.BinaryOpDiv, floatType, binaryFunc{ret: floatType, evaluate: arithFloat64(func(a, b float64) float64 { return a / b })})

	return r
}()
