package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/driftdb/drift/pkg/util/arrowtest"
)

var pipelineTestSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
}, nil)

// batchSource returns a pipeline that yields the given batches in order and
// then EOF. The pipeline retains the batches until they are read.
func batchSource(t *testing.T, batches ...arrowtest.Rows) Pipeline {
	t.Helper()

	mem := memory.NewGoAllocator()
	records := make([]arrow.Record, len(batches))
	for i, rows := range batches {
		records[i] = rows.Record(mem, pipelineTestSchema)
	}

	var next int
	return newGenericPipeline(pipelineTestSchema, func(_ context.Context, _ []Pipeline) (arrow.Record, error) {
		if next >= len(records) {
			return nil, EOF
		}
		record := records[next]
		next++
		return record, nil
	})
}

func TestGenericPipeline(t *testing.T) {
	t.Run("nil read function behaves as exhausted", func(t *testing.T) {
		pipeline := newGenericPipeline(pipelineTestSchema, nil)
		_, err := pipeline.Read(t.Context())
		require.ErrorIs(t, err, EOF)
	})

	t.Run("close propagates to all inputs", func(t *testing.T) {
		var closed [2]bool
		inputs := []Pipeline{
			&closeProbe{Pipeline: emptyPipeline(pipelineTestSchema), closed: &closed[0]},
			&closeProbe{Pipeline: emptyPipeline(pipelineTestSchema), closed: &closed[1]},
		}
		pipeline := newGenericPipeline(pipelineTestSchema, nil, inputs...)
		pipeline.Close()

		require.True(t, closed[0])
		require.True(t, closed[1])
	})
}

func TestEmptyPipeline(t *testing.T) {
	pipeline := emptyPipeline(pipelineTestSchema)
	require.True(t, pipeline.Schema().Equal(pipelineTestSchema))

	for range 3 {
		_, err := pipeline.Read(t.Context())
		require.ErrorIs(t, err, EOF)
	}
}

func TestPrefetchingPipeline(t *testing.T) {
	t.Run("yields all batches in order", func(t *testing.T) {
		pipeline := newPrefetchingPipeline(batchSource(t,
			arrowtest.Rows{{"id": int64(1)}},
			arrowtest.Rows{{"id": int64(2)}},
		))
		defer pipeline.Close()

		require.Equal(t, arrowtest.Rows{{"id": int64(1)}}, readRows(t, pipeline))
		require.Equal(t, arrowtest.Rows{{"id": int64(2)}}, readRows(t, pipeline))

		_, err := pipeline.Read(t.Context())
		require.ErrorIs(t, err, EOF)
	})

	t.Run("keeps returning EOF after exhaustion", func(t *testing.T) {
		pipeline := newPrefetchingPipeline(batchSource(t))
		defer pipeline.Close()

		for range 3 {
			_, err := pipeline.Read(t.Context())
			require.ErrorIs(t, err, EOF)
		}
	})

	t.Run("propagates read errors", func(t *testing.T) {
		readErr := errors.New("read failed")
		inner := newGenericPipeline(pipelineTestSchema, func(_ context.Context, _ []Pipeline) (arrow.Record, error) {
			return nil, readErr
		})

		pipeline := newPrefetchingPipeline(inner)
		defer pipeline.Close()

		_, err := pipeline.Read(t.Context())
		require.ErrorIs(t, err, readErr)
	})

	t.Run("close before first read does not deadlock", func(t *testing.T) {
		pipeline := newPrefetchingPipeline(batchSource(t, arrowtest.Rows{{"id": int64(1)}}))
		pipeline.Close()
	})

	t.Run("close mid stream stops the prefetcher", func(t *testing.T) {
		pipeline := newPrefetchingPipeline(batchSource(t,
			arrowtest.Rows{{"id": int64(1)}},
			arrowtest.Rows{{"id": int64(2)}},
			arrowtest.Rows{{"id": int64(3)}},
		))

		require.Equal(t, arrowtest.Rows{{"id": int64(1)}}, readRows(t, pipeline))
		pipeline.Close()
	})
}

func TestTracedPipeline(t *testing.T) {
	pipeline := tracePipeline("test", batchSource(t, arrowtest.Rows{{"id": int64(1)}}))
	defer pipeline.Close()

	require.True(t, pipeline.Schema().Equal(pipelineTestSchema))
	require.Equal(t, arrowtest.Rows{{"id": int64(1)}}, readRows(t, pipeline))

	_, err := pipeline.Read(t.Context())
	require.ErrorIs(t, err, EOF)
}

type closeProbe struct {
	Pipeline
	closed *bool
}

func (p *closeProbe) Close() {
	*p.closed = true
	p.Pipeline.Close()
}
