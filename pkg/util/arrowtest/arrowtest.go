// Package arrowtest provides utilities for working with Arrow records in
// tests, converting between records and row-oriented map fixtures.
package arrowtest

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Row is a single row of a record, keyed by column name. Nil values denote
// nulls.
type Row map[string]any

// Rows is a set of [Row]s sharing a schema.
type Rows []Row

// Record converts rows into an [arrow.Record] of the given schema. Columns
// missing from a row become null. The caller owns the returned record and
// must release it.
//
// Record panics on column types other than bool, int64, float64, string, and
// nanosecond timestamps (given as int64).
func (rows Rows) Record(mem memory.Allocator, schema *arrow.Schema) arrow.Record {
	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	for _, row := range rows {
		for i, field := range schema.Fields() {
			fieldBuilder := builder.Field(i)

			value, ok := row[field.Name]
			if !ok || value == nil {
				fieldBuilder.AppendNull()
				continue
			}

			switch b := fieldBuilder.(type) {
			case *array.BooleanBuilder:
				b.Append(value.(bool))
			case *array.Int64Builder:
				b.Append(value.(int64))
			case *array.Float64Builder:
				b.Append(value.(float64))
			case *array.StringBuilder:
				b.Append(value.(string))
			case *array.TimestampBuilder:
				b.Append(arrow.Timestamp(value.(int64)))
			default:
				panic(fmt.Sprintf("arrowtest: unsupported builder type %T for column %q", fieldBuilder, field.Name))
			}
		}
	}

	return builder.NewRecord()
}

// RecordRows converts a record back into [Rows] for comparison in tests.
func RecordRows(record arrow.Record) (Rows, error) {
	rows := make(Rows, record.NumRows())
	for i := range rows {
		rows[i] = make(Row, record.NumCols())
	}

	for col := 0; col < int(record.NumCols()); col++ {
		name := record.Schema().Field(col).Name

		for row := 0; row < int(record.NumRows()); row++ {
			if record.Column(col).IsNull(row) {
				rows[row][name] = nil
				continue
			}

			switch arr := record.Column(col).(type) {
			case *array.Boolean:
				rows[row][name] = arr.Value(row)
			case *array.Int64:
				rows[row][name] = arr.Value(row)
			case *array.Float64:
				rows[row][name] = arr.Value(row)
			case *array.String:
				rows[row][name] = arr.Value(row)
			case *array.Timestamp:
				rows[row][name] = int64(arr.Value(row))
			default:
				return nil, fmt.Errorf("unsupported array type %T for column %q", record.Column(col), name)
			}
		}
	}

	return rows, nil
}
