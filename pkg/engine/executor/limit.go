package executor

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/driftdb/drift/pkg/engine/physical"
)

// Limit skips the first skip rows of its input and emits at most fetch rows
// after that, per partition. Once the fetch budget is exhausted the input is
// no longer pulled, so upstream operators stop early.
type Limit struct {
	child Node
	skip  int64
	fetch int64
}

var _ Node = (*Limit)(nil)

// NewLimit creates a limit node over child.
func NewLimit(child Node, skip, fetch int64) *Limit {
	return &Limit{child: child, skip: skip, fetch: fetch}
}

// Schema implements Node.
func (l *Limit) Schema() *arrow.Schema {
	return l.child.Schema()
}

// OutputPartitioning implements Node. A limit does not redistribute rows.
func (l *Limit) OutputPartitioning() physical.Partitioning {
	return l.child.OutputPartitioning()
}

// Children implements Node.
func (l *Limit) Children() []Node {
	return []Node{l.child}
}

// WithNewChildren implements Node.
func (l *Limit) WithNewChildren(children ...Node) (Node, error) {
	if len(children) != 1 {
		return nil, fmt.Errorf("limit expects exactly one child, got %d", len(children))
	}
	return NewLimit(children[0], l.skip, l.fetch), nil
}

// Execute implements Node.
func (l *Limit) Execute(ctx context.Context, ec *ExecContext, partition int) (Pipeline, error) {
	if err := checkPartition(l, partition); err != nil {
		return nil, err
	}

	input, err := l.child.Execute(ctx, ec, partition)
	if err != nil {
		return nil, err
	}

	return tracePipeline("executor.Limit", newLimitPipeline(l.Schema(), l.skip, l.fetch, input)), nil
}

func newLimitPipeline(schema *arrow.Schema, skip, fetch int64, input Pipeline) *GenericPipeline {
	// We gradually reduce offsetRemaining and limitRemaining as we process
	// more records, as the skip and fetch may cross record boundaries.
	var (
		offsetRemaining = skip
		limitRemaining  = fetch
	)

	return newGenericPipeline(schema, func(ctx context.Context, inputs []Pipeline) (arrow.Record, error) {
		for {
			// Stop once we reached the limit, without pulling the input again.
			if limitRemaining <= 0 {
				return nil, EOF
			}

			batch, err := inputs[0].Read(ctx)
			if err != nil {
				return nil, err
			}

			// We want to slice the batch so it only contains the rows we're
			// looking for, accounting for both the limit and offset. We
			// constrain the start and end to be within the bounds of the record.
			start := min(offsetRemaining, batch.NumRows())
			end := min(start+limitRemaining, batch.NumRows())
			length := end - start

			offsetRemaining -= start
			limitRemaining -= length

			// Batches fully consumed by the remaining offset yield no rows;
			// pull the next one instead of emitting empty batches.
			if length == 0 {
				batch.Release()
				continue
			}

			sliced := batch.NewSlice(start, end)
			batch.Release()
			return sliced, nil
		}
	}, input)
}
