package table

import (
	"fmt"
	"math"

	"github.com/TFMV/bqdecode/schema"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ---------------------------------------------------------------------
// Arrow Types
// ---------------------------------------------------------------------

var (
	// TimestampType carries TIMESTAMP columns: absolute instants in UTC.
	TimestampType = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}
	// DateTimeType carries DATETIME columns: wall-clock values without a zone.
	DateTimeType = &arrow.TimestampType{Unit: arrow.Microsecond}
)

// ArrowSchema maps top-level fields onto an Arrow schema.
func ArrowSchema(fields []*schema.Field) *arrow.Schema {
	out := make([]arrow.Field, len(fields))
	for j, f := range fields {
		out[j] = ArrowField(f)
	}
	return arrow.NewSchema(out, nil)
}

// ArrowField maps one field; repeated fields become lists and records
// become structs.
func ArrowField(f *schema.Field) arrow.Field {
	typ := elemType(f)
	if f.Repeated() {
		typ = arrow.ListOf(typ)
	}
	return arrow.Field{Name: f.Name(), Type: typ, Nullable: true}
}

func elemType(f *schema.Field) arrow.DataType {
	switch f.Type() {
	case schema.Integer:
		return arrow.PrimitiveTypes.Int64
	case schema.Float:
		return arrow.PrimitiveTypes.Float64
	case schema.Boolean:
		return arrow.FixedWidthTypes.Boolean
	case schema.String:
		return arrow.BinaryTypes.String
	case schema.Timestamp:
		return TimestampType
	case schema.DateTime:
		return DateTimeType
	case schema.Time:
		return arrow.FixedWidthTypes.Time64us
	case schema.Date:
		return arrow.FixedWidthTypes.Date32
	case schema.Record:
		children := make([]arrow.Field, f.NumFields())
		for j := range children {
			children[j] = ArrowField(f.Field(j))
		}
		return arrow.StructOf(children...)
	}
	panic(fmt.Sprintf("table: no arrow type for %s", f.Type()))
}

// ---------------------------------------------------------------------
// Conversion
// ---------------------------------------------------------------------

// ToArrow copies t into a single Arrow record. The caller owns the record
// and must Release it.
func ToArrow(t *Table, mem memory.Allocator) (arrow.Record, error) {
	builder := array.NewRecordBuilder(mem, ArrowSchema(t.fields))
	defer builder.Release()

	for j, col := range t.columns {
		b := builder.Field(j)
		b.Reserve(t.rows)
		for i := 0; i < t.rows; i++ {
			if err := appendCell(b, col, i); err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", t.fields[j].Name(), i, err)
			}
		}
	}
	return builder.NewRecord(), nil
}

func appendCell(b array.Builder, col Column, i int) error {
	switch c := col.(type) {
	case *ListColumn:
		lb, ok := b.(*array.ListBuilder)
		if !ok {
			return fmt.Errorf("unexpected builder %T for list column", b)
		}
		elems := c.Row(i)
		if elems == nil {
			lb.AppendNull()
			return nil
		}
		lb.Append(true)
		vb := lb.ValueBuilder()
		for k := 0; k < elems.Len(); k++ {
			if err := appendScalar(vb, elems, k); err != nil {
				return err
			}
		}
		return nil
	case *RepeatedRecordColumn:
		lb, ok := b.(*array.ListBuilder)
		if !ok {
			return fmt.Errorf("unexpected builder %T for repeated record column", b)
		}
		if c.IsNull(i) {
			lb.AppendNull()
			return nil
		}
		lb.Append(true)
		sb, ok := lb.ValueBuilder().(*array.StructBuilder)
		if !ok {
			return fmt.Errorf("unexpected builder %T for record element", lb.ValueBuilder())
		}
		nested := c.Row(i)
		for r := 0; r < nested.rows; r++ {
			if err := appendStruct(sb, nested, r); err != nil {
				return err
			}
		}
		return nil
	case *RecordColumn:
		sb, ok := b.(*array.StructBuilder)
		if !ok {
			return fmt.Errorf("unexpected builder %T for record column", b)
		}
		return appendStruct(sb, c.Row(i), 0)
	default:
		return appendScalar(b, col, i)
	}
}

// appendStruct appends row r of nested as one struct value. A null record
// is a valid struct whose children are all null.
func appendStruct(sb *array.StructBuilder, nested *Table, r int) error {
	sb.Append(true)
	for j, col := range nested.columns {
		if err := appendCell(sb.FieldBuilder(j), col, r); err != nil {
			return err
		}
	}
	return nil
}

type appender[A any] interface {
	Append(A)
	AppendNull()
}

func appendValue[T Scalar, A any](b appender[A], v *Vector[T], i int, conv func(T) A) {
	x, ok := v.Value(i)
	if !ok {
		b.AppendNull()
		return
	}
	b.Append(conv(x))
}

func same[T any](x T) T { return x }

func micros(secs float64) int64 { return int64(math.Round(secs * 1e6)) }

func appendScalar(b array.Builder, col Column, i int) error {
	switch col.Type() {
	case schema.Integer:
		appendValue(b.(*array.Int64Builder), col.(*Vector[int64]), i, same[int64])
	case schema.Float:
		appendValue(b.(*array.Float64Builder), col.(*Vector[float64]), i, same[float64])
	case schema.Boolean:
		appendValue(b.(*array.BooleanBuilder), col.(*Vector[bool]), i, same[bool])
	case schema.String:
		appendValue(b.(*array.StringBuilder), col.(*Vector[string]), i, same[string])
	case schema.Timestamp, schema.DateTime:
		appendValue(b.(*array.TimestampBuilder), col.(*Vector[float64]), i, func(s float64) arrow.Timestamp {
			return arrow.Timestamp(micros(s))
		})
	case schema.Time:
		appendValue(b.(*array.Time64Builder), col.(*Vector[float64]), i, func(s float64) arrow.Time64 {
			return arrow.Time64(micros(s))
		})
	case schema.Date:
		appendValue(b.(*array.Date32Builder), col.(*Vector[int32]), i, func(d int32) arrow.Date32 {
			return arrow.Date32(d)
		})
	default:
		return fmt.Errorf("no scalar layout for %s", col.Type())
	}
	return nil
}
