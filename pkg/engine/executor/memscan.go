package executor

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/driftdb/drift/pkg/engine/physical"
)

// MemScan is a leaf node that serves record batches from memory, one record
// set per partition. It is the execution-layer entry point for data produced
// by the external catalog/storage layer and the standard source for tests.
//
// The node does not take ownership of the records; the caller must keep them
// valid for the lifetime of the node.
type MemScan struct {
	schema     *arrow.Schema
	partitions [][]arrow.Record
}

var _ Node = (*MemScan)(nil)

// NewMemScan creates a scan node over the given per-partition record sets.
// Every record must carry the given schema.
func NewMemScan(schema *arrow.Schema, partitions [][]arrow.Record) (*MemScan, error) {
	for p, records := range partitions {
		for i, record := range records {
			if !record.Schema().Equal(schema) {
				return nil, fmt.Errorf("record %d of partition %d has schema %v, expected %v", i, p, record.Schema(), schema)
			}
		}
	}
	return &MemScan{schema: schema, partitions: partitions}, nil
}

// Schema implements Node.
func (m *MemScan) Schema() *arrow.Schema {
	return m.schema
}

// OutputPartitioning implements Node.
func (m *MemScan) OutputPartitioning() physical.Partitioning {
	return physical.UnknownPartitioning(len(m.partitions))
}

// Children implements Node. A scan is a leaf.
func (m *MemScan) Children() []Node {
	return []Node{}
}

// WithNewChildren implements Node.
func (m *MemScan) WithNewChildren(children ...Node) (Node, error) {
	if len(children) != 0 {
		return nil, fmt.Errorf("scan expects no children, got %d", len(children))
	}
	return &MemScan{schema: m.schema, partitions: m.partitions}, nil
}

// Execute implements Node. Only the requested partition is served; batches
// are re-sliced to the execution context's batch size if one is set.
func (m *MemScan) Execute(_ context.Context, ec *ExecContext, partition int) (Pipeline, error) {
	if err := checkPartition(m, partition); err != nil {
		return nil, err
	}

	records := m.partitions[partition]
	if len(records) == 0 {
		return emptyPipeline(m.schema), nil
	}

	var batchSize int64
	if ec != nil {
		batchSize = ec.BatchSize
	}
	return tracePipeline("executor.MemScan", newBufferedPipeline(m.schema, batchSize, ec.metrics(), records)), nil
}

// bufferedPipeline streams a fixed set of records, slicing them into batches
// of at most batchSize rows when batchSize is positive.
type bufferedPipeline struct {
	schema    *arrow.Schema
	batchSize int64
	metrics   *Metrics

	records []arrow.Record
	current int
	offset  int64
}

var _ Pipeline = (*bufferedPipeline)(nil)

func newBufferedPipeline(schema *arrow.Schema, batchSize int64, metrics *Metrics, records []arrow.Record) *bufferedPipeline {
	for _, record := range records {
		record.Retain()
	}
	return &bufferedPipeline{
		schema:    schema,
		batchSize: batchSize,
		metrics:   metrics,
		records:   records,
	}
}

// Schema implements Pipeline.
func (p *bufferedPipeline) Schema() *arrow.Schema {
	return p.schema
}

// Read implements Pipeline.
func (p *bufferedPipeline) Read(_ context.Context) (arrow.Record, error) {
	if p.current >= len(p.records) {
		return nil, EOF
	}

	record := p.records[p.current]
	remaining := record.NumRows() - p.offset

	start := p.offset
	end := record.NumRows()
	if p.batchSize > 0 && remaining > p.batchSize {
		end = start + p.batchSize
		p.offset = end
	} else {
		p.current++
		p.offset = 0
	}

	batch := record.NewSlice(start, end)
	p.metrics.observeBatch("scan", batch.NumRows())
	return batch, nil
}

// Close implements Pipeline. It releases the records still being held.
func (p *bufferedPipeline) Close() {
	for _, record := range p.records {
		record.Release()
	}
	p.records = nil
	p.current = 0
}
