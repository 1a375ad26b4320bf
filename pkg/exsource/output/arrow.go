package output

import (
	"database/sql"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/cockroachdb/errors"
	"github.com/ukaji3/exsource-go/pkg/exsource/models"
)

// RowSource is a typed row cursor, such as *cursor.Cursor.
type RowSource interface {
	Advance() bool
	Err() error
	IsNull(field int) bool
	Text(field int) (sql.NullString, error)
	Int64(field int) (int64, error)
	Float64(field int) (float64, error)
	Bool(field int) (bool, error)
	Date(field int) (sql.NullInt32, error)
	Timestamp(field int) (sql.NullInt64, error)
}

// ArrowType maps a column type to its Arrow data type.
func ArrowType(t models.ColumnType) (arrow.DataType, error) {
	switch t {
	case models.TypeVarchar:
		return arrow.BinaryTypes.String, nil
	case models.TypeBigint:
		return arrow.PrimitiveTypes.Int64, nil
	case models.TypeDouble:
		return arrow.PrimitiveTypes.Float64, nil
	case models.TypeBoolean:
		return arrow.FixedWidthTypes.Boolean, nil
	case models.TypeDate:
		return arrow.FixedWidthTypes.Date32, nil
	case models.TypeTimestamp:
		return arrow.FixedWidthTypes.Timestamp_ms, nil
	}
	return nil, errors.Newf("no arrow type for %s", t)
}

// ArrowSchema builds a schema with one nullable field per column.
func ArrowSchema(columns []models.Column) (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(columns))
	for i, col := range columns {
		dt, err := ArrowType(col.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "column %q", col.Name)
		}
		fields[i] = arrow.Field{Name: col.Name, Type: dt, Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

// WriteArrow drains rows into an Arrow IPC stream of batchSize-row record
// batches and returns the number of rows written.
func WriteArrow(w io.Writer, columns []models.Column, rows RowSource, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.Newf("batch size must be positive, got %d", batchSize)
	}
	schema, err := ArrowSchema(columns)
	if err != nil {
		return 0, err
	}

	alloc := memory.DefaultAllocator
	writer := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(alloc))
	builder := array.NewRecordBuilder(alloc, schema)
	defer builder.Release()

	flush := func() error {
		rec := builder.NewRecord()
		defer rec.Release()
		if rec.NumRows() == 0 {
			return nil
		}
		return writer.Write(rec)
	}

	var total int64
	pending := 0
	for rows.Advance() {
		for i, col := range columns {
			if err := appendValue(builder.Field(i), col.Type, rows, i); err != nil {
				_ = writer.Close()
				return total, err
			}
		}
		total++
		pending++
		if pending == batchSize {
			if err := flush(); err != nil {
				_ = writer.Close()
				return total, err
			}
			pending = 0
		}
	}
	if err := rows.Err(); err != nil {
		_ = writer.Close()
		return total, err
	}
	if err := flush(); err != nil {
		_ = writer.Close()
		return total, err
	}
	return total, writer.Close()
}

func appendValue(b array.Builder, t models.ColumnType, rows RowSource, field int) error {
	if rows.IsNull(field) {
		b.AppendNull()
		return nil
	}
	switch t {
	case models.TypeVarchar:
		v, err := rows.Text(field)
		if err != nil {
			return err
		}
		if !v.Valid {
			b.AppendNull()
			return nil
		}
		b.(*array.StringBuilder).Append(v.String)
	case models.TypeBigint:
		v, err := rows.Int64(field)
		if err != nil {
			return err
		}
		b.(*array.Int64Builder).Append(v)
	case models.TypeDouble:
		v, err := rows.Float64(field)
		if err != nil {
			return err
		}
		b.(*array.Float64Builder).Append(v)
	case models.TypeBoolean:
		v, err := rows.Bool(field)
		if err != nil {
			return err
		}
		b.(*array.BooleanBuilder).Append(v)
	case models.TypeDate:
		v, err := rows.Date(field)
		if err != nil {
			return err
		}
		if !v.Valid {
			b.AppendNull()
			return nil
		}
		b.(*array.Date32Builder).Append(arrow.Date32(v.Int32))
	case models.TypeTimestamp:
		v, err := rows.Timestamp(field)
		if err != nil {
			return err
		}
		if !v.Valid {
			b.AppendNull()
			return nil
		}
		b.(*array.TimestampBuilder).Append(arrow.Timestamp(v.Int64))
	default:
		return errors.Newf("unsupported column type %s", t)
	}
	return nil
}
