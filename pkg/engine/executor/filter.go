package executor

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log/level"

	errs "github.com/driftdb/drift/pkg/engine/internal/errors"
	"github.com/driftdb/drift/pkg/engine/physical"
)

// Filter evaluates a boolean predicate against each batch of its input and
// discards the rows the predicate does not select. It never alters the
// schema, row order, or partitioning of its input.
type Filter struct {
	child     Node
	predicate physical.Expression
}

var _ Node = (*Filter)(nil)

// NewFilter creates a filter node over child. The predicate must evaluate to
// a boolean value; this is verified when the node is executed, not at
// construction time.
func NewFilter(child Node, predicate physical.Expression) *Filter {
	return &Filter{child: child, predicate: predicate}
}

// Schema implements Node. A filter does not alter the schema of its input.
func (f *Filter) Schema() *arrow.Schema {
	return f.child.Schema()
}

// OutputPartitioning implements Node. A filter does not redistribute rows.
func (f *Filter) OutputPartitioning() physical.Partitioning {
	return f.child.OutputPartitioning()
}

// Children implements Node.
func (f *Filter) Children() []Node {
	return []Node{f.child}
}

// WithNewChildren implements Node.
func (f *Filter) WithNewChildren(children ...Node) (Node, error) {
	if len(children) != 1 {
		return nil, fmt.Errorf("filter expects exactly one child, got %d", len(children))
	}
	return NewFilter(children[0], f.predicate), nil
}

// Execute implements Node. The predicate is compiled against the resolved
// schema before the child is executed, so an invalid predicate fails without
// observably starting the child.
func (f *Filter) Execute(ctx context.Context, ec *ExecContext, partition int) (Pipeline, error) {
	if err := checkPartition(f, partition); err != nil {
		return nil, err
	}

	expr, err := newExpressionEvaluator(ec.allocator()).compile(f.predicate, f.Schema())
	if err != nil {
		return nil, fmt.Errorf("compiling filter predicate: %w", err)
	}

	input, err := f.child.Execute(ctx, ec, partition)
	if err != nil {
		return nil, err
	}

	return tracePipeline("executor.Filter", newFilterPipeline(f.Schema(), expr, input, ec)), nil
}

func newFilterPipeline(schema *arrow.Schema, expr *CompiledExpr, input Pipeline, ec *ExecContext) *GenericPipeline {
	var (
		mem     = ec.allocator()
		logger  = ec.logger()
		metrics = ec.metrics()
	)

	return newGenericPipeline(schema, func(ctx context.Context, inputs []Pipeline) (arrow.Record, error) {
		// Pull the next batch from the input pipeline. End of stream and
		// upstream errors propagate unchanged.
		batch, err := inputs[0].Read(ctx)
		if err != nil {
			return nil, err
		}
		defer batch.Release()

		vec, err := expr.Evaluate(batch)
		if err != nil {
			return nil, fmt.Errorf("evaluating filter predicate: %w", err)
		}
		defer vec.Release()

		mask, err := booleanMask(vec, batch.NumRows())
		if err != nil {
			return nil, err
		}
		defer mask.Release()

		filtered, err := filterRecord(mem, batch, mask)
		if err != nil {
			return nil, err
		}

		metrics.observeBatch("filter", filtered.NumRows())
		metrics.observeFiltered(batch.NumRows() - filtered.NumRows())
		level.Debug(logger).Log("msg", "filtered batch", "rows_in", batch.NumRows(), "rows_out", filtered.NumRows())

		return filtered, nil
	}, input)
}

// booleanMask materializes an evaluated predicate result and verifies it is a
// boolean vector of exactly rows elements. Anything else is a contract
// violation between the expression and the filter.
func booleanMask(vec ColumnVector, rows int64) (*array.Boolean, error) {
	arr := vec.ToArray()

	mask, ok := arr.(*array.Boolean)
	if !ok {
		arr.Release()
		return nil, fmt.Errorf("%w: filter predicate evaluated to %s, expected %s", errs.ErrType, arr.DataType(), arrow.FixedWidthTypes.Boolean)
	}
	if int64(mask.Len()) != rows {
		mask.Release()
		return nil, fmt.Errorf("%w: filter mask has %d rows, batch has %d", errs.ErrType, mask.Len(), rows)
	}
	return mask, nil
}

// filterRecord applies a single selection mask to every column of the batch,
// producing a new batch with the original schema. All columns are filtered by
// the identical mask instance so row alignment across columns is preserved.
// Mask slots that are null count as not selected.
func filterRecord(mem memory.Allocator, batch arrow.Record, mask *array.Boolean) (arrow.Record, error) {
	fields := batch.Schema().Fields()

	builders := make([]array.Builder, len(fields))
	defer func() {
		for _, b := range builders {
			if b != nil {
				b.Release()
			}
		}
	}()

	appends := make([]func(int), len(fields))

	for i, field := range fields {
		switch field.Type.ID() {
		case arrow.BOOL:
			builder := array.NewBooleanBuilder(mem)
			builders[i] = builder
			src := batch.Column(i).(*array.Boolean)
			appends[i] = func(row int) {
				if src.IsNull(row) {
					builder.AppendNull()
					return
				}
				builder.Append(src.Value(row))
			}

		case arrow.INT64:
			builder := array.NewInt64Builder(mem)
			builders[i] = builder
			src := batch.Column(i).(*array.Int64)
			appends[i] = func(row int) {
				if src.IsNull(row) {
					builder.AppendNull()
					return
				}
				builder.Append(src.Value(row))
			}

		case arrow.FLOAT64:
			builder := array.NewFloat64Builder(mem)
			builders[i] = builder
			src := batch.Column(i).(*array.Float64)
			appends[i] = func(row int) {
				if src.IsNull(row) {
					builder.AppendNull()
					return
				}
				builder.Append(src.Value(row))
			}

		case arrow.STRING:
			builder := array.NewStringBuilder(mem)
			builders[i] = builder
			src := batch.Column(i).(*array.String)
			appends[i] = func(row int) {
				if src.IsNull(row) {
					builder.AppendNull()
					return
				}
				builder.Append(src.Value(row))
			}

		case arrow.TIMESTAMP:
			builder := array.NewTimestampBuilder(mem, field.Type.(*arrow.TimestampType))
			builders[i] = builder
			src := batch.Column(i).(*array.Timestamp)
			appends[i] = func(row int) {
				if src.IsNull(row) {
					builder.AppendNull()
					return
				}
				builder.Append(src.Value(row))
			}

		default:
			return nil, fmt.Errorf("%w: filtering columns of type %s", errs.ErrNotImplemented, field.Type)
		}
	}

	var rows int64
	for i := 0; i < int(batch.NumRows()); i++ {
		if !mask.IsValid(i) || !mask.Value(i) {
			continue
		}
		for _, appendRow := range appends {
			appendRow(i)
		}
		rows++
	}

	arrays := make([]arrow.Array, len(builders))
	for i, builder := range builders {
		arrays[i] = builder.NewArray()
	}

	filtered := array.NewRecord(batch.Schema(), arrays, rows)
	for _, arr := range arrays {
		arr.Release()
	}
	return filtered, nil
}
