package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	pqfile "github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"

	"github.com/nao1215/sheetsql/domain/model"
)

// readParquet loads a Parquet sheet. Typed arrow columns keep their type;
// string columns go through the same inference as spreadsheet text.
func readParquet(ctx context.Context, path string, c CompressionType) (*model.SheetData, error) {
	r, cleanup, err := openCompressed(path, c)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cleanup() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet data: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty parquet file")
	}

	pqReader, err := pqfile.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}
	table, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}
	defer table.Release()

	schema := table.Schema()
	width := schema.NumFields()
	var rows [][]any
	tableReader := array.NewTableReader(table, 0)
	defer tableReader.Release()
	for tableReader.Next() {
		batch := tableReader.Record()
		for i := range int(batch.NumRows()) {
			row := make([]any, width)
			for j, col := range batch.Columns() {
				row[j] = arrowValue(col, i)
			}
			rows = append(rows, row)
		}
	}
	if err := tableReader.Err(); err != nil {
		return nil, fmt.Errorf("error reading table records: %w", err)
	}

	columns := make([]model.Column, width)
	for j, field := range schema.Fields() {
		columns[j] = model.Column{Name: field.Name, Position: j, Type: arrowColumnType(field.Type), Nullable: true}
		if columns[j].Type != model.DataTypeText {
			continue
		}
		// text columns may hold dates or numbers written as strings
		values := make([]string, 0, len(rows))
		for _, row := range rows {
			values = append(values, model.Text(row[j]))
		}
		columns[j].Type = model.InferColumnType(values)
		for _, row := range rows {
			if s, ok := row[j].(string); ok {
				row[j] = model.ParseCell(s, columns[j].Type)
			}
		}
	}
	if rows == nil {
		rows = [][]any{}
	}
	return &model.SheetData{Columns: columns, Rows: rows, HeaderRow: 0, DataStartRow: 1}, nil
}

func arrowColumnType(t arrow.DataType) model.DataType {
	switch t.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32:
		return model.DataTypeInteger
	case arrow.FLOAT32, arrow.FLOAT64:
		return model.DataTypeDecimal
	case arrow.BOOL:
		return model.DataTypeBoolean
	case arrow.TIMESTAMP, arrow.DATE32, arrow.DATE64:
		return model.DataTypeDateTime
	default:
		return model.DataTypeText
	}
}

func arrowValue(col arrow.Array, i int) any {
	if col.IsNull(i) {
		return nil
	}
	switch a := col.(type) {
	case *array.Int64:
		return a.Value(i)
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Uint16:
		return int64(a.Value(i))
	case *array.Uint8:
		return int64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Boolean:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit).UTC()
	case *array.Date32:
		return a.Value(i).ToTime().UTC()
	case *array.Date64:
		return a.Value(i).ToTime().UTC()
	default:
		return col.ValueStr(i)
	}
}

// parquetKind picks the arrow type that holds every value of a column
func parquetKind(rows [][]any, j int) arrow.DataType {
	allInt, allNum, allBool, seen := true, true, true, false
	for _, row := range rows {
		if j >= len(row) || row[j] == nil {
			continue
		}
		seen = true
		switch row[j].(type) {
		case int64:
			allBool = false
		case float64:
			allInt, allBool = false, false
		case bool:
			allInt, allNum = false, false
		default:
			allInt, allNum, allBool = false, false, false
		}
	}
	switch {
	case !seen:
		return arrow.BinaryTypes.String
	case allInt:
		return arrow.PrimitiveTypes.Int64
	case allNum:
		return arrow.PrimitiveTypes.Float64
	case allBool:
		return arrow.FixedWidthTypes.Boolean
	default:
		return arrow.BinaryTypes.String
	}
}

// writeParquet replaces a Parquet sheet file. Header offsets are not
// representable in Parquet and are dropped.
func writeParquet(path string, c CompressionType, data *model.SheetData) error {
	fields := make([]arrow.Field, len(data.Columns))
	for j, col := range data.Columns {
		fields[j] = arrow.Field{Name: col.Name, Type: parquetKind(data.Rows, j), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()
	for _, row := range data.Rows {
		for j := range fields {
			var v any
			if j < len(row) {
				v = row[j]
			}
			appendArrowValue(builder.Field(j), v)
		}
	}
	record := builder.NewRecord()
	defer record.Release()

	return writeAtomically(path, c, func(w io.Writer) error {
		// the parquet writer closes its sink; the temp file must stay open
		fw, err := pqarrow.NewFileWriter(schema, struct{ io.Writer }{w}, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
		if err != nil {
			return fmt.Errorf("failed to create parquet writer: %w", err)
		}
		if err := fw.Write(record); err != nil {
			_ = fw.Close()
			return fmt.Errorf("failed to write parquet: %w", err)
		}
		if err := fw.Close(); err != nil {
			return fmt.Errorf("failed to finish parquet: %w", err)
		}
		return nil
	})
}

func appendArrowValue(b array.Builder, v any) {
	if v == nil {
		b.AppendNull()
		return
	}
	switch fb := b.(type) {
	case *array.Int64Builder:
		fb.Append(v.(int64))
	case *array.Float64Builder:
		f, _ := model.ToFloat(v)
		fb.Append(f)
	case *array.BooleanBuilder:
		fb.Append(v.(bool))
	case *array.StringBuilder:
		fb.Append(model.Text(v))
	default:
		b.AppendNull()
	}
}
