package executor

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/driftdb/drift/pkg/engine/physical"
)

// Projection evaluates a list of expressions against each batch of its input
// and emits their results as the columns of a new batch.
type Projection struct {
	child  Node
	exprs  []physical.Expression
	schema *arrow.Schema
}

var _ Node = (*Projection)(nil)

// NewProjection creates a projection node over child. names provides the
// output column names, one per expression; a nil names derives column names
// from the expressions themselves. The output schema is resolved immediately
// by binding every expression against the child's schema, so an invalid
// projection fails at construction time.
func NewProjection(child Node, exprs []physical.Expression, names []string) (*Projection, error) {
	if len(exprs) == 0 {
		return nil, fmt.Errorf("projection expects at least one expression, got 0")
	}
	if names != nil && len(names) != len(exprs) {
		return nil, fmt.Errorf("projection has %d expressions but %d names", len(exprs), len(names))
	}

	evaluator := newExpressionEvaluator(memory.DefaultAllocator)
	fields := make([]arrow.Field, len(exprs))
	for i, expr := range exprs {
		compiled, err := evaluator.compile(expr, child.Schema())
		if err != nil {
			return nil, fmt.Errorf("binding projection expression %d: %w", i, err)
		}

		name := expr.String()
		if names != nil {
			name = names[i]
		}
		fields[i] = arrow.Field{Name: name, Type: compiled.DataType(), Nullable: true}
	}

	return &Projection{
		child:  child,
		exprs:  exprs,
		schema: arrow.NewSchema(fields, nil),
	}, nil
}

// Schema implements Node.
func (p *Projection) Schema() *arrow.Schema {
	return p.schema
}

// OutputPartitioning implements Node. A projection does not redistribute rows.
func (p *Projection) OutputPartitioning() physical.Partitioning {
	return p.child.OutputPartitioning()
}

// Children implements Node.
func (p *Projection) Children() []Node {
	return []Node{p.child}
}

// WithNewChildren implements Node. The output schema is re-resolved against
// the replacement child.
func (p *Projection) WithNewChildren(children ...Node) (Node, error) {
	if len(children) != 1 {
		return nil, fmt.Errorf("projection expects exactly one child, got %d", len(children))
	}

	names := make([]string, p.schema.NumFields())
	for i := range names {
		names[i] = p.schema.Field(i).Name
	}
	return NewProjection(children[0], p.exprs, names)
}

// Execute implements Node. Expressions are compiled once per execution, then
// evaluated per batch.
func (p *Projection) Execute(ctx context.Context, ec *ExecContext, partition int) (Pipeline, error) {
	if err := checkPartition(p, partition); err != nil {
		return nil, err
	}

	evaluator := newExpressionEvaluator(ec.allocator())
	compiled := make([]*CompiledExpr, len(p.exprs))
	for i, expr := range p.exprs {
		var err error
		if compiled[i], err = evaluator.compile(expr, p.child.Schema()); err != nil {
			return nil, fmt.Errorf("compiling projection expression %d: %w", i, err)
		}
	}

	input, err := p.child.Execute(ctx, ec, partition)
	if err != nil {
		return nil, err
	}

	return tracePipeline("executor.Projection", newProjectPipeline(p.schema, compiled, input, ec)), nil
}

func newProjectPipeline(schema *arrow.Schema, exprs []*CompiledExpr, input Pipeline, ec *ExecContext) *GenericPipeline {
	metrics := ec.metrics()

	return newGenericPipeline(schema, func(ctx context.Context, inputs []Pipeline) (arrow.Record, error) {
		batch, err := inputs[0].Read(ctx)
		if err != nil {
			return nil, err
		}
		defer batch.Release()

		columns := make([]arrow.Array, len(exprs))
		defer func() {
			for _, col := range columns {
				if col != nil {
					col.Release()
				}
			}
		}()

		for i, expr := range exprs {
			vec, err := expr.Evaluate(batch)
			if err != nil {
				return nil, fmt.Errorf("evaluating projection expression %d: %w", i, err)
			}
			columns[i] = vec.ToArray()
			vec.Release()
		}

		projected := array.NewRecord(schema, columns, batch.NumRows())
		metrics.observeBatch("projection", projected.NumRows())
		return projected, nil
	}, input)
}
