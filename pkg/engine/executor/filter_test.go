package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	errs "github.com/driftdb/drift/pkg/engine/internal/errors"
	"github.com/driftdb/drift/pkg/engine/internal/types"
	"github.com/driftdb/drift/pkg/engine/physical"
	"github.com/driftdb/drift/pkg/util/arrowtest"
)

var filterTestSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "flag", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
}, nil)

// scanOf builds a MemScan over the given batches, one set of batches per
// partition.
func scanOf(t *testing.T, schema *arrow.Schema, partitions ...[]arrowtest.Rows) *MemScan {
	t.Helper()

	mem := memory.NewGoAllocator()
	parts := make([][]arrow.Record, len(partitions))
	for p, batches := range partitions {
		for _, rows := range batches {
			record := rows.Record(mem, schema)
			t.Cleanup(record.Release)
			parts[p] = append(parts[p], record)
		}
	}

	scan, err := NewMemScan(schema, parts)
	require.NoError(t, err)
	return scan
}

func readRows(t *testing.T, pipeline Pipeline) arrowtest.Rows {
	t.Helper()

	record, err := pipeline.Read(t.Context())
	require.NoError(t, err)
	defer record.Release()

	rows, err := arrowtest.RecordRows(record)
	require.NoError(t, err)
	return rows
}

func TestFilter(t *testing.T) {
	input := []arrowtest.Rows{
		{
			{"id": int64(1), "flag": true},
			{"id": int64(2), "flag": false},
			{"id": int64(3), "flag": true},
			{"id": int64(4), "flag": false},
		},
	}

	t.Run("true literal predicate keeps every row", func(t *testing.T) {
		filter := NewFilter(scanOf(t, filterTestSchema, input), physical.NewLiteral(true))

		pipeline, err := filter.Execute(t.Context(), nil, 0)
		require.NoError(t, err)
		defer pipeline.Close()

		require.Equal(t, input[0], readRows(t, pipeline))

		_, err = pipeline.Read(t.Context())
		require.ErrorIs(t, err, EOF)
	})

	t.Run("false literal predicate yields a zero-row batch", func(t *testing.T) {
		filter := NewFilter(scanOf(t, filterTestSchema, input), physical.NewLiteral(false))

		pipeline, err := filter.Execute(t.Context(), nil, 0)
		require.NoError(t, err)
		defer pipeline.Close()

		record, err := pipeline.Read(t.Context())
		require.NoError(t, err)
		defer record.Release()

		require.Equal(t, int64(0), record.NumRows())
		require.True(t, record.Schema().Equal(filterTestSchema), "filtering must not alter the schema")
	})

	t.Run("boolean column predicate keeps aligned rows", func(t *testing.T) {
		predicate := &physical.BinaryExpr{
			Left:  physical.NewColumnExpr("flag"),
			Right: physical.NewLiteral(true),
			Op:    types.BinaryOpEq,
		}
		filter := NewFilter(scanOf(t, filterTestSchema, input), predicate)

		pipeline, err := filter.Execute(t.Context(), nil, 0)
		require.NoError(t, err)
		defer pipeline.Close()

		require.Equal(t, arrowtest.Rows{
			{"id": int64(1), "flag": true},
			{"id": int64(3), "flag": true},
		}, readRows(t, pipeline))
	})

	t.Run("comparison predicate emits zero-row batches in order", func(t *testing.T) {
		batches := []arrowtest.Rows{
			{{"id": int64(1), "flag": true}, {"id": int64(2), "flag": true}},
			{{"id": int64(3), "flag": true}, {"id": int64(4), "flag": true}},
		}
		predicate := &physical.BinaryExpr{
			Left:  physical.NewColumnExpr("id"),
			Right: physical.NewLiteral(int64(2)),
			Op:    types.BinaryOpGt,
		}
		filter := NewFilter(scanOf(t, filterTestSchema, batches), predicate)

		pipeline, err := filter.Execute(t.Context(), nil, 0)
		require.NoError(t, err)
		defer pipeline.Close()

		// The first batch matches no rows and must still be emitted, not
		// coalesced with the second.
		first, err := pipeline.Read(t.Context())
		require.NoError(t, err)
		defer first.Release()
		require.Equal(t, int64(0), first.NumRows())

		require.Equal(t, arrowtest.Rows{
			{"id": int64(3), "flag": true},
			{"id": int64(4), "flag": true},
		}, readRows(t, pipeline))

		_, err = pipeline.Read(t.Context())
		require.ErrorIs(t, err, EOF)
	})

	t.Run("null predicate values drop the row", func(t *testing.T) {
		batches := []arrowtest.Rows{
			{
				{"id": int64(1), "flag": true},
				{"id": int64(2), "flag": nil},
				{"id": int64(3), "flag": true},
			},
		}
		filter := NewFilter(scanOf(t, filterTestSchema, batches), physical.NewColumnExpr("flag"))

		pipeline, err := filter.Execute(t.Context(), nil, 0)
		require.NoError(t, err)
		defer pipeline.Close()

		require.Equal(t, arrowtest.Rows{
			{"id": int64(1), "flag": true},
			{"id": int64(3), "flag": true},
		}, readRows(t, pipeline))
	})

	t.Run("empty input stream yields an empty output stream", func(t *testing.T) {
		filter := NewFilter(scanOf(t, filterTestSchema, nil), physical.NewLiteral(true))

		pipeline, err := filter.Execute(t.Context(), nil, 0)
		require.NoError(t, err)
		defer pipeline.Close()

		_, err = pipeline.Read(t.Context())
		require.ErrorIs(t, err, EOF)

		// Reading after end of stream keeps returning end of stream.
		_, err = pipeline.Read(t.Context())
		require.ErrorIs(t, err, EOF)
	})
}

func TestFilter_errors(t *testing.T) {
	input := []arrowtest.Rows{
		{{"id": int64(1), "flag": true}},
	}

	t.Run("unknown column fails before the child executes", func(t *testing.T) {
		probe := &executeProbe{Node: scanOf(t, filterTestSchema, input)}
		filter := NewFilter(probe, physical.NewColumnExpr("missing"))

		_, err := filter.Execute(t.Context(), nil, 0)
		require.ErrorIs(t, err, errs.ErrKey)
		require.False(t, probe.executed, "compile errors must not trigger child execution")
	})

	t.Run("non-boolean predicate fails with a type error", func(t *testing.T) {
		filter := NewFilter(scanOf(t, filterTestSchema, input), physical.NewColumnExpr("id"))

		pipeline, err := filter.Execute(t.Context(), nil, 0)
		require.NoError(t, err)
		defer pipeline.Close()

		_, err = pipeline.Read(t.Context())
		require.ErrorIs(t, err, errs.ErrType)
	})

	t.Run("evaluation error propagates from Read", func(t *testing.T) {
		predicate := &physical.BinaryExpr{
			Left: &physical.BinaryExpr{
				Left:  physical.NewColumnExpr("id"),
				Right: physical.NewLiteral(int64(0)),
				Op:    types.BinaryOpDiv,
			},
			Right: physical.NewLiteral(int64(1)),
			Op:    types.BinaryOpEq,
		}
		filter := NewFilter(scanOf(t, filterTestSchema, input), predicate)

		pipeline, err := filter.Execute(t.Context(), nil, 0)
		require.NoError(t, err)
		defer pipeline.Close()

		_, err = pipeline.Read(t.Context())
		require.ErrorContains(t, err, "division by zero")
	})

	t.Run("upstream errors propagate unchanged", func(t *testing.T) {
		readErr := errors.New("upstream failed")
		child := &failingNode{schema: filterTestSchema, err: readErr}
		filter := NewFilter(child, physical.NewLiteral(true))

		pipeline, err := filter.Execute(t.Context(), nil, 0)
		require.NoError(t, err)
		defer pipeline.Close()

		_, err = pipeline.Read(t.Context())
		require.ErrorIs(t, err, readErr)
	})

	t.Run("out of range partition fails with an index error", func(t *testing.T) {
		filter := NewFilter(scanOf(t, filterTestSchema, input), physical.NewLiteral(true))

		_, err := filter.Execute(t.Context(), nil, 1)
		require.ErrorIs(t, err, errs.ErrIndex)

		_, err = filter.Execute(t.Context(), nil, -1)
		require.ErrorIs(t, err, errs.ErrIndex)
	})
}

func TestFilter_planOperations(t *testing.T) {
	scan := scanOf(t, filterTestSchema, []arrowtest.Rows{
		{{"id": int64(1), "flag": true}},
	})
	filter := NewFilter(scan, physical.NewLiteral(true))

	t.Run("schema and partitioning pass through from the child", func(t *testing.T) {
		require.True(t, filter.Schema().Equal(scan.Schema()))
		require.Equal(t, scan.OutputPartitioning(), filter.OutputPartitioning())
		require.Equal(t, []Node{scan}, filter.Children())
	})

	t.Run("with new children accepts exactly one child", func(t *testing.T) {
		_, err := filter.WithNewChildren()
		require.Error(t, err)

		_, err = filter.WithNewChildren(scan, scan)
		require.Error(t, err)
	})

	t.Run("with new children rewrites without mutating the receiver", func(t *testing.T) {
		replacement := scanOf(t, filterTestSchema,
			[]arrowtest.Rows{{{"id": int64(7), "flag": true}}},
			[]arrowtest.Rows{{{"id": int64(8), "flag": true}}},
		)

		rewritten, err := filter.WithNewChildren(replacement)
		require.NoError(t, err)

		require.Equal(t, []Node{replacement}, rewritten.Children())
		require.Equal(t, 2, rewritten.OutputPartitioning().PartitionCount())

		// The original node still points at its old child.
		require.Equal(t, []Node{scan}, filter.Children())
		require.Equal(t, 1, filter.OutputPartitioning().PartitionCount())
	})
}

// executeProbe records whether Execute was invoked on the wrapped node.
type executeProbe struct {
	Node
	executed bool
}

func (p *executeProbe) Execute(ctx context.Context, ec *ExecContext, partition int) (Pipeline, error) {
	p.executed = true
	return p.Node.Execute(ctx, ec, partition)
}

// failingNode is a single-partition leaf whose pipeline fails on every read.
type failingNode struct {
	schema *arrow.Schema
	err    error
}

var _ Node = (*failingNode)(nil)

func (n *failingNode) Schema() *arrow.Schema { return n.schema }

func (n *failingNode) OutputPartitioning() physical.Partitioning {
	return physical.SinglePartitioning()
}

func (n *failingNode) Children() []Node { return []Node{} }

func (n *failingNode) WithNewChildren(children ...Node) (Node, error) {
	if len(children) != 0 {
		return nil, errors.New("leaf expects no children")
	}
	return n, nil
}

func (n *failingNode) Execute(_ context.Context, _ *ExecContext, partition int) (Pipeline, error) {
	if err := checkPartition(n, partition); err != nil {
		return nil, err
	}
	return newGenericPipeline(n.schema, func(_ context.Context, _ []Pipeline) (arrow.Record, error) {
		return nil, n.err
	}), nil
}
