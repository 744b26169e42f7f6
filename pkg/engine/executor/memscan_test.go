package executor

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	errs "github.com/driftdb/drift/pkg/engine/internal/errors"
	"github.com/driftdb/drift/pkg/engine/physical"
	"github.com/driftdb/drift/pkg/util/arrowtest"
)

func TestMemScan(t *testing.T) {
	t.Run("serves partitions independently", func(t *testing.T) {
		scan := scanOf(t, filterTestSchema,
			[]arrowtest.Rows{{{"id": int64(1), "flag": true}}},
			[]arrowtest.Rows{{{"id": int64(2), "flag": false}}},
		)

		require.Equal(t, physical.PartitioningUnknown, scan.OutputPartitioning().Scheme())
		require.Equal(t, 2, scan.OutputPartitioning().PartitionCount())

		first, err := scan.Execute(t.Context(), nil, 0)
		require.NoError(t, err)
		defer first.Close()
		require.Equal(t, arrowtest.Rows{{"id": int64(1), "flag": true}}, readRows(t, first))

		second, err := scan.Execute(t.Context(), nil, 1)
		require.NoError(t, err)
		defer second.Close()
		require.Equal(t, arrowtest.Rows{{"id": int64(2), "flag": false}}, readRows(t, second))
	})

	t.Run("slices batches to the configured batch size", func(t *testing.T) {
		scan := scanOf(t, filterTestSchema, []arrowtest.Rows{
			{
				{"id": int64(1), "flag": true},
				{"id": int64(2), "flag": true},
				{"id": int64(3), "flag": true},
				{"id": int64(4), "flag": true},
				{"id": int64(5), "flag": true},
			},
		})

		pipeline, err := scan.Execute(t.Context(), &ExecContext{BatchSize: 2}, 0)
		require.NoError(t, err)
		defer pipeline.Close()

		var sizes []int64
		for {
			batch, err := pipeline.Read(t.Context())
			if err != nil {
				require.ErrorIs(t, err, EOF)
				break
			}
			sizes = append(sizes, batch.NumRows())
			batch.Release()
		}
		require.Equal(t, []int64{2, 2, 1}, sizes)
	})

	t.Run("empty partition is exhausted immediately", func(t *testing.T) {
		scan := scanOf(t, filterTestSchema, []arrowtest.Rows{})

		pipeline, err := scan.Execute(t.Context(), nil, 0)
		require.NoError(t, err)
		defer pipeline.Close()

		_, err = pipeline.Read(t.Context())
		require.ErrorIs(t, err, EOF)
	})

	t.Run("out of range partition fails with an index error", func(t *testing.T) {
		scan := scanOf(t, filterTestSchema, []arrowtest.Rows{})

		_, err := scan.Execute(t.Context(), nil, 1)
		require.ErrorIs(t, err, errs.ErrIndex)
	})

	t.Run("records must match the declared schema", func(t *testing.T) {
		mem := memory.NewGoAllocator()
		other := arrow.NewSchema([]arrow.Field{
			{Name: "other", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		}, nil)

		record := arrowtest.Rows{{"other": int64(1)}}.Record(mem, other)
		defer record.Release()

		_, err := NewMemScan(filterTestSchema, [][]arrow.Record{{record}})
		require.Error(t, err)
	})

	t.Run("with new children rejects children", func(t *testing.T) {
		scan := scanOf(t, filterTestSchema, []arrowtest.Rows{})

		_, err := scan.WithNewChildren(scan)
		require.Error(t, err)

		clone, err := scan.WithNewChildren()
		require.NoError(t, err)
		require.Empty(t, clone.Children())
	})
}
