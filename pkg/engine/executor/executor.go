// Package executor implements the physical execution layer of the engine:
// the operator contract every physical plan node satisfies, the pull-based
// stream protocol batches flow through, and the concrete operators built on
// top of both.
package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	errs "github.com/driftdb/drift/pkg/engine/internal/errors"
	"github.com/driftdb/drift/pkg/engine/physical"
)

var tracer = otel.Tracer("pkg/engine/executor")

// Node is the contract every physical operator satisfies. Nodes are immutable
// after construction and safely shared: multiple partitions may execute the
// same node concurrently, and plan-rewrite passes may reference the same
// subtree from multiple parents.
type Node interface {
	// Schema returns the output schema of the node. It is stable and
	// independent of execution.
	Schema() *arrow.Schema

	// OutputPartitioning declares how the output rows of the node are
	// distributed across partitions. Nodes that do not redistribute rows
	// return their child's partitioning unchanged.
	OutputPartitioning() physical.Partitioning

	// Children returns the inputs of the node for plan traversal. A leaf
	// returns an empty slice.
	Children() []Node

	// WithNewChildren returns a new node of the same kind with the given
	// replacement children. It fails if the number of children does not match
	// the node's arity. The receiver is left unchanged.
	WithNewChildren(children ...Node) (Node, error)

	// Execute triggers execution of a single partition and returns the
	// stream of its batches. Execution is lazy: beyond setup work such as
	// compiling expressions and executing children, no data is produced
	// until the returned pipeline is read. It fails if partition is out of
	// range for the node's output partitioning, or if binding an expression
	// against the resolved schema fails.
	Execute(ctx context.Context, ec *ExecContext, partition int) (Pipeline, error)
}

// ExecContext carries the runtime facilities of one execution. It is threaded
// through every Execute call; operators forward it unchanged to their
// children. The zero value is usable.
type ExecContext struct {
	// Allocator used for all array and record construction. Defaults to
	// [memory.DefaultAllocator].
	Allocator memory.Allocator

	// Logger for per-operator debug logging. Defaults to a nop logger.
	Logger log.Logger

	// BatchSize is an advisory upper bound on the row count of batches
	// produced by leaf operators. Zero means unbounded.
	BatchSize int64

	// Metrics is an optional metrics container. Nil disables metric
	// collection.
	Metrics *Metrics
}

func (ec *ExecContext) allocator() memory.Allocator {
	if ec == nil || ec.Allocator == nil {
		return memory.DefaultAllocator
	}
	return ec.Allocator
}

func (ec *ExecContext) logger() log.Logger {
	if ec == nil || ec.Logger == nil {
		return log.NewNopLogger()
	}
	return ec.Logger
}

func (ec *ExecContext) metrics() *Metrics {
	if ec == nil {
		return nil
	}
	return ec.Metrics
}

// checkPartition fails if partition is out of range for the node's output
// partitioning.
func checkPartition(n Node, partition int) error {
	if count := n.OutputPartitioning().PartitionCount(); partition < 0 || partition >= count {
		return fmt.Errorf("%w: partition %d out of range [0, %d)", errs.ErrIndex, partition, count)
	}
	return nil
}

// Collect executes one partition of a node and drains it into a slice of
// records. The caller owns the returned records and must release them.
func Collect(ctx context.Context, ec *ExecContext, node Node, partition int) ([]arrow.Record, error) {
	pipeline, err := node.Execute(ctx, ec, partition)
	if err != nil {
		return nil, err
	}
	defer pipeline.Close()

	return drain(ctx, pipeline)
}

// CollectAll executes every partition of a node concurrently and returns the
// records of each partition in partition order. Batch order within a
// partition is preserved; partitions share no mutable state and execute
// independently. The caller owns the returned records and must release them.
func CollectAll(ctx context.Context, ec *ExecContext, node Node) ([][]arrow.Record, error) {
	count := node.OutputPartitioning().PartitionCount()
	out := make([][]arrow.Record, count)

	g, ctx := errgroup.WithContext(ctx)
	for partition := range count {
		g.Go(func() error {
			pipeline, err := node.Execute(ctx, ec, partition)
			if err != nil {
				return fmt.Errorf("partition %d: %w", partition, err)
			}

			prefetched := newPrefetchingPipeline(pipeline)
			defer prefetched.Close()

			batches, err := drain(ctx, prefetched)
			if err != nil {
				return fmt.Errorf("partition %d: %w", partition, err)
			}
			out[partition] = batches
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		releaseAll(out)
		return nil, err
	}
	return out, nil
}

func drain(ctx context.Context, pipeline Pipeline) ([]arrow.Record, error) {
	var batches []arrow.Record
	for {
		batch, err := pipeline.Read(ctx)
		if errors.Is(err, EOF) {
			return batches, nil
		}
		if err != nil {
			for _, b := range batches {
				b.Release()
			}
			return nil, err
		}
		batches = append(batches, batch)
	}
}

func releaseAll(partitions [][]arrow.Record) {
	for _, batches := range partitions {
		for _, b := range batches {
			b.Release()
		}
	}
}
